package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// FlagStore supplies the read-only feature flag snapshot used per decision.
type FlagStore interface {
	Snapshot(ctx context.Context) (map[string]FeatureFlag, error)
}

// PGFlagStore loads flag definitions from the feature_flags table.
// Concurrent snapshot loads are coalesced into a single query.
type PGFlagStore struct {
	pool     *pgxpool.Pool
	validate *validator.Validate
	logger   *slog.Logger
	group    singleflight.Group
}

// NewPGFlagStore constructs a PGFlagStore.
func NewPGFlagStore(pool *pgxpool.Pool, logger *slog.Logger) *PGFlagStore {
	return &PGFlagStore{
		pool:     pool,
		validate: validator.New(),
		logger:   logger,
	}
}

// Snapshot loads all flag definitions. Definitions that fail validation are
// dropped with a warning, which leaves the flag unavailable rather than
// partially applied.
func (s *PGFlagStore) Snapshot(ctx context.Context) (map[string]FeatureFlag, error) {
	result, err, _ := s.group.Do("snapshot", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]FeatureFlag), nil
}

func (s *PGFlagStore) load(ctx context.Context) (map[string]FeatureFlag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, enabled, rollout_percentage, plans, tenant_ids, user_roles
		FROM feature_flags`)
	if err != nil {
		return nil, fmt.Errorf("access: load flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]FeatureFlag)
	for rows.Next() {
		var (
			flag      FeatureFlag
			rollout   *int
			plans     []string
			tenantIDs []string
			roles     []string
		)
		if err := rows.Scan(&flag.Key, &flag.Enabled, &rollout, &plans, &tenantIDs, &roles); err != nil {
			return nil, fmt.Errorf("access: scan flag: %w", err)
		}
		flag.RolloutPercentage = rollout
		if len(plans) > 0 || len(tenantIDs) > 0 || len(roles) > 0 {
			restrictions := &TenantRestrictions{Plans: plans, TenantIDs: tenantIDs}
			for _, r := range roles {
				restrictions.UserRoles = append(restrictions.UserRoles, Role(r))
			}
			flag.Restrictions = restrictions
		}
		if err := s.validate.Struct(flag); err != nil {
			if s.logger != nil {
				s.logger.Warn("dropping invalid flag definition",
					slog.String("key", flag.Key), slog.Any("error", err))
			}
			continue
		}
		flags[flag.Key] = flag
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("access: load flags: %w", err)
	}
	return flags, nil
}

// StaticFlagStore serves a fixed in-memory snapshot. Used by the memory
// backend and by tests.
type StaticFlagStore struct {
	Flags map[string]FeatureFlag
}

// Snapshot returns a copy of the configured flags.
func (s *StaticFlagStore) Snapshot(ctx context.Context) (map[string]FeatureFlag, error) {
	flags := make(map[string]FeatureFlag, len(s.Flags))
	for key, flag := range s.Flags {
		flags[key] = flag
	}
	return flags, nil
}
