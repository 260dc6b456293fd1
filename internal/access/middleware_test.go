package access_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func middlewareFixture() access.Middleware {
	return access.Middleware{
		Engine: access.NewEngine(nil, nil),
		Principals: &access.StaticPrincipalSource{Principals: map[string]*access.Principal{
			"tok-viewer": {
				ID: "u-1", TenantID: "acme", Role: access.RoleViewer,
				Permissions: []access.Permission{{Resource: "tanks", Action: access.ActionRead}},
			},
		}},
	}
}

func tenantRequest(target, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	ctx := tenant.WithContext(req.Context(), tenant.Context{ID: "acme", Source: tenant.SourcePath})
	return req.WithContext(ctx)
}

func TestAuthenticateMissingToken(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateUnknownToken(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAccessAllowsGrantedAction(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(m.RequireAccess("tanks", access.ActionRead)(okHandler()))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, tenantRequest("/tanks", "tok-viewer"))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAccessDeniesMissingGrant(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(m.RequireAccess("tanks", access.ActionDelete)(okHandler()))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, tenantRequest("/tanks", "tok-viewer"))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "ACCESS_DENIED")
}

func TestRequireAccessDeniesWithoutTenant(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(m.RequireAccess("tanks", access.ActionRead)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/tanks", nil)
	req.Header.Set("Authorization", "Bearer tok-viewer")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAdminDeniesNonAdminGrant(t *testing.T) {
	m := middlewareFixture()
	handler := m.Authenticate(m.RequireAdmin("tanks")(okHandler()))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, tenantRequest("/admin/tanks", "tok-viewer"))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireFeatureWithStaticFlags(t *testing.T) {
	m := middlewareFixture()
	m.Flags = access.NewFlagService(
		m.Engine,
		&access.StaticFlagStore{Flags: map[string]access.FeatureFlag{
			"advanced-telemetry": {Key: "advanced-telemetry", Enabled: true},
		}},
		&access.StaticTenantDirectory{Plans: map[string]string{"acme": "enterprise"}},
		nil, 0, nil,
	)

	allowed := m.Authenticate(m.RequireFeature("advanced-telemetry")(okHandler()))
	res := httptest.NewRecorder()
	allowed.ServeHTTP(res, tenantRequest("/telemetry", "tok-viewer"))
	require.Equal(t, http.StatusOK, res.Code)

	denied := m.Authenticate(m.RequireFeature("unknown-flag")(okHandler()))
	res = httptest.NewRecorder()
	denied.ServeHTTP(res, tenantRequest("/telemetry", "tok-viewer"))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "FEATURE_UNAVAILABLE")
}
