package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTenantUnknown indicates the tenant is not provisioned.
var ErrTenantUnknown = errors.New("access: unknown tenant")

// TenantDirectory answers tenant-level attributes owned by the provisioning
// collaborator, currently just the billing plan used by flag restrictions.
type TenantDirectory interface {
	Plan(ctx context.Context, tenantID string) (string, error)
}

// PGTenantDirectory reads tenant attributes from the tenants table.
type PGTenantDirectory struct {
	pool *pgxpool.Pool
}

// NewPGTenantDirectory constructs a PGTenantDirectory.
func NewPGTenantDirectory(pool *pgxpool.Pool) *PGTenantDirectory {
	return &PGTenantDirectory{pool: pool}
}

// Plan returns the tenant's billing plan.
func (d *PGTenantDirectory) Plan(ctx context.Context, tenantID string) (string, error) {
	var plan string
	err := d.pool.QueryRow(ctx,
		`SELECT plan FROM tenants WHERE id = $1 AND active`, tenantID).Scan(&plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTenantUnknown
		}
		return "", fmt.Errorf("access: tenant plan: %w", err)
	}
	return plan, nil
}

// StaticTenantDirectory serves fixed plans, for the memory backend and tests.
type StaticTenantDirectory struct {
	Plans map[string]string
}

// Plan returns the configured plan, or ErrTenantUnknown.
func (d *StaticTenantDirectory) Plan(ctx context.Context, tenantID string) (string, error) {
	plan, ok := d.Plans[tenantID]
	if !ok {
		return "", ErrTenantUnknown
	}
	return plan, nil
}
