package tenant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/unrolled/secure"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/httpx"
)

// HeaderTenantID is set on every resolved response and expected on every
// tenant-scoped API call.
const HeaderTenantID = "X-Tenant-ID"

// MiddlewareConfig aggregates dependencies for the resolution middleware.
type MiddlewareConfig struct {
	Resolver *Resolver
	Logger   *slog.Logger
	// SelectURL is where unresolvable root requests are redirected so the
	// user can pick a tenant. Defaults to /select-tenant.
	SelectURL string
}

// Middleware resolves tenant identity for every non-internal request. On
// success it stores the tenant in the request context and stamps the response
// with the tenant id plus the defensive header set. Malformed tenant ids stop
// the request with 400; they never fall through to shared data.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	selectURL := cfg.SelectURL
	if selectURL == "" {
		selectURL = "/select-tenant"
	}
	sec := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Passthrough(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tc, err := cfg.Resolver.Resolve(r.Host, r.URL.Path)
			if err != nil {
				var invalid *InvalidTenantError
				if errors.As(err, &invalid) {
					if cfg.Logger != nil {
						cfg.Logger.Warn("rejected malformed tenant id",
							slog.String("host", r.Host),
							slog.String("path", r.URL.Path))
					}
					httpx.ProblemCode(w, http.StatusBadRequest, "Invalid Tenant", httpx.CodeInvalidTenant, "tenant identifier is malformed")
					return
				}
				if r.URL.Path == "/" {
					http.Redirect(w, r, selectURL, http.StatusFound)
					return
				}
				// No tenant identity; downstream authorization fails closed.
				next.ServeHTTP(w, r)
				return
			}

			_ = sec.Process(w, r)
			w.Header().Set(HeaderTenantID, tc.ID)
			w.Header().Set("Content-Security-Policy", tenantCSP(cfg.Resolver, tc.ID))

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
		})
	}
}

// tenantCSP builds a policy that only allows API calls back to the platform
// and the tenant's own subdomains.
func tenantCSP(r *Resolver, tenantID string) string {
	connect := "'self'"
	for _, base := range r.BaseDomains {
		connect += fmt.Sprintf(" https://%s.%s", tenantID, base)
	}
	return fmt.Sprintf("default-src 'self'; connect-src %s; frame-ancestors 'none'", connect)
}
