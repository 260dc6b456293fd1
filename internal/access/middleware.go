package access

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/httpx"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// Middleware wires authorization enforcement for HTTP handlers.
type Middleware struct {
	Engine     *Engine
	Principals PrincipalSource
	Flags      *FlagService
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Authenticate resolves the bearer token into a principal and stores it in
// the request context. Requests without a valid token are rejected; protected
// routes never run with an absent principal.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		principal, err := m.Principals.PrincipalByToken(r.Context(), token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("token rejected", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAccess enforces (resource, action) before the handler runs. Denials
// are generic 403s; the reason stays in the server log.
func (m Middleware) RequireAccess(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := m.requestContext(r)
			if err := m.Engine.ValidateAccess(ac, resource, action); err != nil {
				m.deny(w, ac, resource, action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin enforces the explicit admin grant on the resource. The
// gateway's unfiltered listing is only reachable behind this.
func (m Middleware) RequireAdmin(resource string) func(http.Handler) http.Handler {
	return m.RequireAccess(resource, ActionAdmin)
}

// RequireFeature enforces feature availability before the handler runs.
func (m Middleware) RequireFeature(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := m.requestContext(r)
			if m.Flags != nil {
				full, err := m.Flags.BuildContext(r.Context(), ac.Tenant, ac.Principal)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("flag snapshot load failed", slog.Any("error", err))
					}
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
				ac = full
			}
			if err := m.Engine.ValidateFeature(ac, key); err != nil {
				httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeFeatureOff, "not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestContext builds the decision tuple from request-scoped values only.
func (m Middleware) requestContext(r *http.Request) Context {
	tc, _ := tenant.FromContext(r.Context())
	return Context{Tenant: tc, Principal: PrincipalFromContext(r.Context())}
}

func (m Middleware) deny(w http.ResponseWriter, ac Context, resource, action string) {
	if m.Logger != nil {
		principalID := ""
		if ac.Principal != nil {
			principalID = ac.Principal.ID
		}
		m.Logger.Warn("access denied",
			slog.String("tenant", ac.Tenant.ID),
			slog.String("principal", principalID),
			slog.String("resource", resource),
			slog.String("action", action))
	}
	if m.Metrics != nil {
		m.Metrics.ObserveDenial(resource, action)
	}
	httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeAccessDenied, "not permitted")
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
