package access

import (
	"log/slog"
	"net/http"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/httpx"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// Handler exposes decision diagnostics to the presentation layer: the
// per-principal flag map and the permission summary the UI uses to show or
// hide affordances. Neither endpoint is an enforcement point.
type Handler struct {
	engine *Engine
	flags  *FlagService
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(engine *Engine, flags *FlagService, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, flags: flags, logger: logger}
}

// Features returns the evaluated flag availability for the caller.
func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.callerContext(w, r)
	if !ok {
		return
	}
	full, err := h.flags.BuildContext(r.Context(), ac.Tenant, ac.Principal)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("flag snapshot load failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	decisions, err := h.flags.EnabledFlags(r.Context(), full)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tenantId": ac.Tenant.ID,
		"flags":    decisions,
	})
}

// Summary returns the read-only permission snapshot for the caller.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.callerContext(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, h.engine.Summary(ac))
}

// callerContext builds the decision context and rejects callers whose
// principal belongs to a different tenant than the path.
func (h *Handler) callerContext(w http.ResponseWriter, r *http.Request) (Context, bool) {
	tc, _ := tenant.FromContext(r.Context())
	principal := PrincipalFromContext(r.Context())
	if principal == nil || tc.ID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return Context{}, false
	}
	if principal.TenantID != tc.ID {
		httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeAccessDenied, "not permitted")
		return Context{}, false
	}
	return Context{Tenant: tc, Principal: principal}, true
}
