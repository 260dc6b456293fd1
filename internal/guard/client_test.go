package guard_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/guard"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
)

// jsonServer serves a fixed JSON payload and records request details.
func jsonServer(t *testing.T, status int, payload any) (*httptest.Server, *http.Request) {
	t.Helper()
	captured := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = *r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestOperationsFailFastWithoutTenant(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := guard.NewClient(srv.URL)
	ctx := context.Background()

	_, err := c.List(ctx, "tanks")
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	_, err = c.Get(ctx, "tanks", "t-1")
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	_, err = c.Create(ctx, "tanks", map[string]any{"name": "Tank"})
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	_, err = c.Update(ctx, "tanks", "t-1", map[string]any{"name": "Tank"})
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	err = c.Delete(ctx, "tanks", "t-1")
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	_, err = c.CreateMany(ctx, "tanks", []map[string]any{{"name": "Tank"}})
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	err = c.DeleteMany(ctx, "tanks", []string{"t-1"})
	require.ErrorIs(t, err, guard.ErrNoTenantContext)
	_, err = c.Upload(ctx, "documents", "m.pdf", strings.NewReader("x"))
	require.ErrorIs(t, err, guard.ErrNoTenantContext)

	require.Zero(t, hits.Load(), "no request may leave the client before a tenant is set")
}

func TestSetTenantValidatesID(t *testing.T) {
	c := guard.NewClient("http://example.invalid")
	require.Error(t, c.SetTenant("ab/cd"))
	require.Error(t, c.SetTenant(strings.Repeat("a", 51)))
	require.Error(t, c.SetTenant(""))
	require.Empty(t, c.Tenant())

	require.NoError(t, c.SetTenant("acme-1"))
	require.Equal(t, "acme-1", c.Tenant())
}

func TestRequestCarriesTenantPathHeaderAndToken(t *testing.T) {
	srv, captured := jsonServer(t, http.StatusOK, []map[string]any{})

	c := guard.NewClient(srv.URL, guard.WithToken("tok-acme"))
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.List(context.Background(), "tanks")
	require.NoError(t, err)

	require.Equal(t, "/tenants/acme/tanks", captured.URL.Path)
	require.Equal(t, "acme", captured.Header.Get("X-Tenant-ID"))
	require.Equal(t, "Bearer tok-acme", captured.Header.Get("Authorization"))
	require.Equal(t, "application/json", captured.Header.Get("Accept"))
}

func TestForeignObjectRejected(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, map[string]any{
		"id": "t-1", "tenantId": "globex", "name": "Tank",
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.Get(context.Background(), "tanks", "t-1")
	require.ErrorIs(t, err, guard.ErrCrossTenantData)

	var cross *guard.CrossTenantDataError
	require.ErrorAs(t, err, &cross)
	require.Equal(t, -1, cross.Element)
}

func TestForeignArrayElementRejected(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, []map[string]any{
		{"id": "t-1", "tenantId": "acme"},
		{"id": "t-2", "tenantId": "globex"},
		{"id": "t-3", "tenantId": "acme"},
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.List(context.Background(), "tanks")
	require.ErrorIs(t, err, guard.ErrCrossTenantData)

	var cross *guard.CrossTenantDataError
	require.ErrorAs(t, err, &cross)
	require.Equal(t, 1, cross.Element, "the first offending element is reported")
}

func TestForeignPayloadAuditedAndCounted(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, map[string]any{
		"id": "t-1", "tenantId": "globex",
	})

	var logs bytes.Buffer
	metrics := observability.NewMetrics()
	c := guard.NewClient(srv.URL,
		guard.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
		guard.WithMetrics(metrics))
	require.NoError(t, c.SetTenant("acme"))

	// One detection, one log line, one counter increment.
	_, err := c.Get(context.Background(), "tanks", "t-1")
	require.ErrorIs(t, err, guard.ErrCrossTenantData)
	require.Equal(t, 1, strings.Count(logs.String(), "cross-tenant data detected in response"))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(),
		`petroleum_isolation_violations_total{layer="guard"} 1`)

	// A clean response leaves both untouched.
	clean, _ := jsonServer(t, http.StatusOK, map[string]any{"id": "t-2", "tenantId": "acme"})
	cleanClient := guard.NewClient(clean.URL, guard.WithMetrics(metrics))
	require.NoError(t, cleanClient.SetTenant("acme"))
	_, err = cleanClient.Get(context.Background(), "tanks", "t-2")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(),
		`petroleum_isolation_violations_total{layer="guard"} 1`)
	require.Equal(t, 1, strings.Count(logs.String(), "cross-tenant data detected in response"))
}

func TestUnscopedPayloadPasses(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, map[string]any{
		"status": "ok", "count": 3,
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	object, err := c.Get(context.Background(), "reports", "summary")
	require.NoError(t, err)
	require.Equal(t, "ok", object["status"])
}

func TestTenantMismatchTranslated(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusForbidden, map[string]any{
		"title": "Forbidden", "code": "TENANT_MISMATCH", "detail": "tenant mismatch",
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.Get(context.Background(), "tanks", "t-1")
	require.ErrorIs(t, err, guard.ErrTenantMismatch)

	var mismatch *guard.TenantMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Contains(t, mismatch.URL, "/tenants/acme/tanks/t-1")
}

func TestAPIErrorCarriesStatusAndDetail(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusNotFound, map[string]any{
		"title": "Not Found", "detail": "no such record",
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.Get(context.Background(), "tanks", "missing")
	var apiErr *guard.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "no such record", apiErr.Message)
}

func TestCreateRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tenants/acme/tanks", r.URL.Path)
		var data map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&data))
		data["id"] = "t-9"
		data["tenantId"] = "acme"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(data)
	}))
	t.Cleanup(srv.Close)

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	rec, err := c.Create(context.Background(), "tanks", map[string]any{"name": "Tank 9"})
	require.NoError(t, err)
	require.Equal(t, "t-9", rec["id"])
	require.Equal(t, "Tank 9", rec["name"])
}

func TestBatchRoutes(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			_ = json.NewEncoder(w).Encode(map[string]int{"deleted": 2})
		default:
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "t-1", "tenantId": "acme"}})
		}
	}))
	t.Cleanup(srv.Close)

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))
	ctx := context.Background()

	_, err := c.CreateMany(ctx, "tanks", []map[string]any{{"name": "A"}})
	require.NoError(t, err)
	_, err = c.UpdateMany(ctx, "tanks", []guard.BatchUpdate{{ID: "t-1", Updates: map[string]any{"n": 1}}})
	require.NoError(t, err)
	require.NoError(t, c.DeleteMany(ctx, "tanks", []string{"t-1", "t-2"}))

	require.Equal(t, []string{
		"POST /tenants/acme/tanks/batch",
		"PUT /tenants/acme/tanks/batch",
		"DELETE /tenants/acme/tanks/batch",
	}, paths)
}

func TestUploadRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tenants/acme/documents/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() {
			_ = file.Close()
		}()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "d-1", "tenantId": "acme", "filename": header.Filename,
		})
	}))
	t.Cleanup(srv.Close)

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	rec, err := c.Upload(context.Background(), "documents", "manifest.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, "manifest.pdf", rec["filename"])
}

func TestDeleteNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))
	require.NoError(t, c.Delete(context.Background(), "tanks", "t-1"))
}

func TestCrossTenantErrorDoesNotNameOwner(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, map[string]any{
		"id": "t-1", "tenantId": "globex",
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.Get(context.Background(), "tanks", "t-1")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "globex")
}

func TestEndToEndAgainstGatewayShapedServer(t *testing.T) {
	// A handler that mimics the real gateway: records keyed per tenant,
	// header/path mismatch rejected with the TENANT_MISMATCH problem code.
	store := map[string][]map[string]any{
		"acme":   {{"id": "t-1", "tenantId": "acme", "name": "Tank 1"}},
		"globex": {{"id": "t-2", "tenantId": "globex", "name": "Tank 2"}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/tenants/"), "/")
		tenantID := parts[0]
		if header := r.Header.Get("X-Tenant-ID"); header != "" && header != tenantID {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{"code": "TENANT_MISMATCH"})
			return
		}
		_ = json.NewEncoder(w).Encode(store[tenantID])
	}))
	t.Cleanup(srv.Close)

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	records, err := c.List(context.Background(), "tanks")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Tank 1", records[0]["name"])

	// Re-pointing the same client at another tenant scopes every following
	// call to that tenant.
	require.NoError(t, c.SetTenant("globex"))
	records, err = c.List(context.Background(), "tanks")
	require.NoError(t, err)
	require.Equal(t, "Tank 2", records[0]["name"])
}

func TestAPIErrorIsNotMismatch(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusForbidden, map[string]any{
		"title": "Forbidden", "code": "ACCESS_DENIED",
	})

	c := guard.NewClient(srv.URL)
	require.NoError(t, c.SetTenant("acme"))

	_, err := c.Get(context.Background(), "tanks", "t-1")
	require.False(t, errors.Is(err, guard.ErrTenantMismatch))
	var apiErr *guard.APIError
	require.ErrorAs(t, err, &apiErr)
}
