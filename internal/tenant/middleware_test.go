package tenant_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

func newMiddleware(t *testing.T) func(http.Handler) http.Handler {
	t.Helper()
	return tenant.Middleware(tenant.MiddlewareConfig{
		Resolver: tenant.NewResolver([]string{"petroleum-saas.com", "localhost"}),
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
}

func TestMiddlewareResolvesAndStampsHeaders(t *testing.T) {
	var seen tenant.Context
	handler := newMiddleware(t)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://acme.petroleum-saas.com/dashboard", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "acme", seen.ID)
	require.Equal(t, "acme", res.Header().Get("X-Tenant-ID"))
	require.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	require.Contains(t, res.Header().Get("Content-Security-Policy"), "https://acme.petroleum-saas.com")
}

func TestMiddlewareRejectsMalformedTenant(t *testing.T) {
	handler := newMiddleware(t)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for malformed tenant")
	}))

	req := httptest.NewRequest(http.MethodGet, "http://localhost/bad%20id%21/dashboard", nil)
	req.URL.Path = "/bad id!/dashboard"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "INVALID_TENANT")
}

func TestMiddlewareRedirectsRootWithoutTenant(t *testing.T) {
	handler := newMiddleware(t)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusFound, res.Code)
	require.Equal(t, "/select-tenant", res.Header().Get("Location"))
}

func TestMiddlewarePassthroughSkipsResolution(t *testing.T) {
	handler := newMiddleware(t)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := tenant.FromContext(r.Context())
		require.False(t, ok)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://acme.petroleum-saas.com/api/tenants/acme/tanks", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("X-Tenant-ID"))
}
