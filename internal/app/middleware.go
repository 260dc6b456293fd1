package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Resolver *tenant.Resolver
	Metrics  *observability.Metrics
}

// MiddlewareStack installs the platform middleware chain. Tenant resolution
// runs after recovery and timeout but before anything tenant-dependent.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	limit, window := 120, time.Minute
	if cfg.Config != nil && cfg.Config.RateLimit > 0 {
		limit = cfg.Config.RateLimit
	}
	if cfg.Config != nil && cfg.Config.RateLimitWindow > 0 {
		window = cfg.Config.RateLimitWindow
	}

	selectURL := ""
	if cfg.Config != nil {
		selectURL = cfg.Config.TenantSelectURL
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		httprate.Limit(limit, window, httprate.WithKeyFuncs(httprate.KeyByIP)),
		tenant.Middleware(tenant.MiddlewareConfig{
			Resolver:  cfg.Resolver,
			Logger:    cfg.Logger,
			SelectURL: selectURL,
		}),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}
