package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// FlagService assembles request-scoped decision contexts and evaluates flag
// availability, with an optional redis cache for evaluated decisions. Cache
// entries are keyed by tenant and principal so one tenant's decisions can
// never satisfy another's lookup.
type FlagService struct {
	engine    *Engine
	store     FlagStore
	directory TenantDirectory
	cache     *redis.Client
	ttl       time.Duration
	logger    *slog.Logger
}

// NewFlagService constructs a FlagService. cache may be nil to disable the
// decision cache.
func NewFlagService(engine *Engine, store FlagStore, directory TenantDirectory, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *FlagService {
	return &FlagService{
		engine:    engine,
		store:     store,
		directory: directory,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

// BuildContext assembles the immutable decision context for one request. An
// unprovisioned tenant yields an empty plan rather than an error: flags with
// plan restrictions then simply evaluate as unavailable.
func (s *FlagService) BuildContext(ctx context.Context, tc tenant.Context, p *Principal) (Context, error) {
	plan := ""
	if s.directory != nil {
		var err error
		plan, err = s.directory.Plan(ctx, tc.ID)
		if err != nil && !errors.Is(err, ErrTenantUnknown) {
			return Context{}, err
		}
	}
	flags, err := s.store.Snapshot(ctx)
	if err != nil {
		return Context{}, err
	}
	return Context{Tenant: tc, Plan: plan, Principal: p, Flags: flags}, nil
}

// EnabledFlags evaluates every flag in the snapshot for the context,
// returning key -> availability. Results are cached per (tenant, principal).
func (s *FlagService) EnabledFlags(ctx context.Context, ac Context) (map[string]bool, error) {
	if ac.Tenant.ID == "" {
		return map[string]bool{}, nil
	}
	key := s.cacheKey(ac)
	if cached, ok := s.cachedDecisions(ctx, key); ok {
		return cached, nil
	}
	decisions := make(map[string]bool, len(ac.Flags))
	for flagKey := range ac.Flags {
		decisions[flagKey] = s.engine.HasFeature(ac, flagKey)
	}
	s.storeDecisions(ctx, key, decisions)
	return decisions, nil
}

func (s *FlagService) cacheKey(ac Context) string {
	principalID := "anonymous"
	if ac.Principal != nil {
		principalID = ac.Principal.ID
	}
	return fmt.Sprintf("access:flags:%s:%s", ac.Tenant.ID, principalID)
}

func (s *FlagService) cachedDecisions(ctx context.Context, key string) (map[string]bool, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("flag cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var decisions map[string]bool
	if err := json.Unmarshal(payload, &decisions); err != nil {
		return nil, false
	}
	return decisions, true
}

func (s *FlagService) storeDecisions(ctx context.Context, key string, decisions map[string]bool) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(decisions)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("flag cache write failed", slog.Any("error", err))
	}
}
