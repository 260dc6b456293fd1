package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalSource resolves an opaque bearer token into a Principal. Token
// issuance and refresh belong to the auth collaborator; this layer only
// consumes the result.
type PrincipalSource interface {
	PrincipalByToken(ctx context.Context, token string) (*Principal, error)
}

// PGPrincipalSource loads principals from the principals table.
type PGPrincipalSource struct {
	pool *pgxpool.Pool
}

// NewPGPrincipalSource constructs a PGPrincipalSource.
func NewPGPrincipalSource(pool *pgxpool.Pool) *PGPrincipalSource {
	return &PGPrincipalSource{pool: pool}
}

// PrincipalByToken resolves a bearer token. Returns ErrUnknownToken when the
// token matches no active principal.
func (s *PGPrincipalSource) PrincipalByToken(ctx context.Context, token string) (*Principal, error) {
	var (
		p        Principal
		rawPerms []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, role, permissions
		FROM principals
		WHERE api_token = $1 AND active`, token).Scan(&p.ID, &p.TenantID, &p.Role, &rawPerms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownToken
		}
		return nil, fmt.Errorf("access: load principal: %w", err)
	}
	if len(rawPerms) > 0 {
		if err := json.Unmarshal(rawPerms, &p.Permissions); err != nil {
			return nil, fmt.Errorf("access: decode permissions: %w", err)
		}
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("access: principal %s has unknown role %q", p.ID, p.Role)
	}
	return &p, nil
}

// StaticPrincipalSource maps fixed tokens to principals, for the memory
// backend and tests.
type StaticPrincipalSource struct {
	Principals map[string]*Principal
}

// PrincipalByToken resolves from the static map.
func (s *StaticPrincipalSource) PrincipalByToken(ctx context.Context, token string) (*Principal, error) {
	p, ok := s.Principals[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	return p, nil
}
