package access

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

func newFlagService(t *testing.T, flags map[string]FeatureFlag, plans map[string]string) (*FlagService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	engine := NewEngine(nil, nil)
	svc := NewFlagService(engine,
		&StaticFlagStore{Flags: flags},
		&StaticTenantDirectory{Plans: plans},
		client, time.Minute, nil)
	return svc, mr
}

func principalFor(tenantID, id string) *Principal {
	return &Principal{ID: id, TenantID: tenantID, Role: RoleViewer}
}

func TestBuildContextLoadsPlanAndFlags(t *testing.T) {
	svc, _ := newFlagService(t,
		map[string]FeatureFlag{"analytics": {Key: "analytics", Enabled: true}},
		map[string]string{"acme": "enterprise"})

	ac, err := svc.BuildContext(context.Background(), tenant.Context{ID: "acme"}, principalFor("acme", "u-1"))
	require.NoError(t, err)
	require.Equal(t, "enterprise", ac.Plan)
	require.Contains(t, ac.Flags, "analytics")
}

func TestBuildContextUnknownTenantHasEmptyPlan(t *testing.T) {
	svc, _ := newFlagService(t, nil, map[string]string{})

	ac, err := svc.BuildContext(context.Background(), tenant.Context{ID: "ghost"}, nil)
	require.NoError(t, err)
	require.Empty(t, ac.Plan)
}

func TestEnabledFlagsEvaluatesAndCaches(t *testing.T) {
	svc, mr := newFlagService(t,
		map[string]FeatureFlag{
			"analytics": {Key: "analytics", Enabled: true},
			"legacy":    {Key: "legacy", Enabled: false},
		},
		map[string]string{"acme": "premium"})

	ac, err := svc.BuildContext(context.Background(), tenant.Context{ID: "acme"}, principalFor("acme", "u-1"))
	require.NoError(t, err)

	decisions, err := svc.EnabledFlags(context.Background(), ac)
	require.NoError(t, err)
	require.True(t, decisions["analytics"])
	require.False(t, decisions["legacy"])

	require.True(t, mr.Exists("access:flags:acme:u-1"))
}

func TestEnabledFlagsCacheKeyedByTenantAndPrincipal(t *testing.T) {
	flags := map[string]FeatureFlag{
		"gated": {
			Key:          "gated",
			Enabled:      true,
			Restrictions: &TenantRestrictions{TenantIDs: []string{"acme"}},
		},
	}
	svc, mr := newFlagService(t, flags, map[string]string{"acme": "premium", "globex": "premium"})

	acmeCtx, err := svc.BuildContext(context.Background(), tenant.Context{ID: "acme"}, principalFor("acme", "u-1"))
	require.NoError(t, err)
	acmeDecisions, err := svc.EnabledFlags(context.Background(), acmeCtx)
	require.NoError(t, err)
	require.True(t, acmeDecisions["gated"])

	// A different tenant with the same flag set must not be served from
	// acme's cache entry.
	globexCtx, err := svc.BuildContext(context.Background(), tenant.Context{ID: "globex"}, principalFor("globex", "u-1"))
	require.NoError(t, err)
	globexDecisions, err := svc.EnabledFlags(context.Background(), globexCtx)
	require.NoError(t, err)
	require.False(t, globexDecisions["gated"])

	require.True(t, mr.Exists("access:flags:acme:u-1"))
	require.True(t, mr.Exists("access:flags:globex:u-1"))
}

func TestEnabledFlagsServedFromCache(t *testing.T) {
	svc, mr := newFlagService(t,
		map[string]FeatureFlag{"analytics": {Key: "analytics", Enabled: true}},
		map[string]string{"acme": "premium"})

	ac, err := svc.BuildContext(context.Background(), tenant.Context{ID: "acme"}, principalFor("acme", "u-1"))
	require.NoError(t, err)
	_, err = svc.EnabledFlags(context.Background(), ac)
	require.NoError(t, err)

	// Poison the cache entry to prove the second call reads it.
	mr.Set("access:flags:acme:u-1", `{"analytics":false}`)
	decisions, err := svc.EnabledFlags(context.Background(), ac)
	require.NoError(t, err)
	require.False(t, decisions["analytics"])
}

func TestEnabledFlagsWithoutCacheClient(t *testing.T) {
	engine := NewEngine(nil, nil)
	svc := NewFlagService(engine,
		&StaticFlagStore{Flags: map[string]FeatureFlag{"analytics": {Key: "analytics", Enabled: true}}},
		nil, nil, 0, nil)

	ac, err := svc.BuildContext(context.Background(), tenant.Context{ID: "acme"}, principalFor("acme", "u-1"))
	require.NoError(t, err)
	decisions, err := svc.EnabledFlags(context.Background(), ac)
	require.NoError(t, err)
	require.True(t, decisions["analytics"])
}
