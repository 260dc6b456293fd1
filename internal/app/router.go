package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/gateway"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
	"github.com/Shakvilla/petroleum-saas-sub005/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Resolver         *tenant.Resolver
	AccessMiddleware access.Middleware
	AccessHandler    *access.Handler
	GatewayHandler   *gateway.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults. The JSON API
// lives under /api; everything else passes through tenant resolution and is
// served by the presentation collaborator.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Resolver: params.Resolver,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.AccessMiddleware.Authenticate)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Use(params.GatewayHandler.TenantGuard)
			r.Get("/features", params.AccessHandler.Features)
			r.Get("/access/summary", params.AccessHandler.Summary)
			r.Route("/{resource}", params.GatewayHandler.ResourceRoutes)
		})

		r.Mount("/admin", params.GatewayHandler.AdminRoutes())

		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
