package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/audit"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/httpx"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// maxUploadBytes bounds multipart uploads.
const maxUploadBytes = 32 << 20

// Handler serves the tenant-scoped REST surface:
//
//	GET/POST       /tenants/{tenantID}/{resource}
//	GET/PUT/DELETE /tenants/{tenantID}/{resource}/{id}
//	POST/PUT/DELETE /tenants/{tenantID}/{resource}/batch
//	POST           /tenants/{tenantID}/{resource}/upload
type Handler struct {
	service  *Service
	engine   *access.Engine
	security *audit.SecurityLogger
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, engine *access.Engine, security *audit.SecurityLogger, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		engine:   engine,
		security: security,
		logger:   logger,
		validate: validator.New(),
	}
}

// Routes mounts the tenant-scoped resource routes. Callers mount this under
// /tenants/{tenantID} with authentication already applied.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.TenantGuard)
	r.Route("/{resource}", h.ResourceRoutes)
	return r
}

// ResourceRoutes registers the per-collection endpoints on r. It expects
// TenantGuard to already be in the middleware chain.
func (h *Handler) ResourceRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/batch", h.createMany)
	r.Put("/batch", h.updateMany)
	r.Delete("/batch", h.deleteMany)
	r.Post("/upload", h.upload)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

// AdminRoutes mounts the unfiltered listing used by platform operators.
// Authorization is enforced per resource inside the handler via the explicit
// admin grant.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{resource}", h.adminList)
	return r
}

// TenantGuard validates the path tenant, rejects header/path mismatches, and
// scopes the request context to the path tenant.
func (h *Handler) TenantGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		if err := tenant.ValidateID(tenantID); err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, "Invalid Tenant", httpx.CodeInvalidTenant, "tenant identifier is malformed")
			return
		}
		if header := r.Header.Get(tenant.HeaderTenantID); header != "" && header != tenantID {
			h.security.Record(r.Context(), audit.SecurityEvent{
				Kind:     audit.KindTenantMismatch,
				TenantID: tenantID,
				Resource: chi.URLParam(r, "resource"),
			})
			httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeTenantMismatch, "tenant mismatch")
			return
		}
		tc := tenant.Context{ID: tenantID, Source: tenant.SourcePath}
		w.Header().Set(tenant.HeaderTenantID, tenantID)
		next.ServeHTTP(w, r.WithContext(tenant.WithContext(r.Context(), tc)))
	})
}

// authorize enforces (resource, action) for the request's tenant and
// principal. It writes the 403 itself and reports whether to continue.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, resource, action string) bool {
	tc, _ := tenant.FromContext(r.Context())
	ac := access.Context{Tenant: tc, Principal: access.PrincipalFromContext(r.Context())}
	if err := h.engine.ValidateAccess(ac, resource, action); err != nil {
		httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeAccessDenied, "not permitted")
		return false
	}
	return true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionRead) {
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	records, err := h.service.FindMany(r.Context(), resource, tc.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionRead) {
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	rec, err := h.service.FindOne(r.Context(), resource, chi.URLParam(r, "id"), tc.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionCreate) {
		return
	}
	var data map[string]any
	if err := httpx.DecodeJSON(r, &data); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	rec, err := h.service.Create(r.Context(), resource, data, tc.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionUpdate) {
		return
	}
	var updates map[string]any
	if err := httpx.DecodeJSON(r, &updates); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	rec, err := h.service.Update(r.Context(), resource, chi.URLParam(r, "id"), updates, tc.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionDelete) {
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), resource, chi.URLParam(r, "id"), tc.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchCreateRequest struct {
	Records []map[string]any `json:"records" validate:"min=1,max=100,dive,required"`
}

func (h *Handler) createMany(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionCreate) {
		return
	}
	var req batchCreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "records must contain 1-100 entries")
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	created := make([]Record, 0, len(req.Records))
	for _, data := range req.Records {
		rec, err := h.service.Create(r.Context(), resource, data, tc.ID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		created = append(created, rec)
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type batchUpdateEntry struct {
	ID      string         `json:"id" validate:"required"`
	Updates map[string]any `json:"updates" validate:"required"`
}

type batchUpdateRequest struct {
	Records []batchUpdateEntry `json:"records" validate:"min=1,max=100,dive"`
}

func (h *Handler) updateMany(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionUpdate) {
		return
	}
	var req batchUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "records must contain 1-100 entries with ids")
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	updated := make([]Record, 0, len(req.Records))
	for _, entry := range req.Records {
		rec, err := h.service.Update(r.Context(), resource, entry.ID, entry.Updates, tc.ID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		updated = append(updated, rec)
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type batchDeleteRequest struct {
	IDs []string `json:"ids" validate:"min=1,max=100,dive,required"`
}

func (h *Handler) deleteMany(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionDelete) {
		return
	}
	var req batchDeleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ids must contain 1-100 entries")
		return
	}
	tc, _ := tenant.FromContext(r.Context())
	for _, id := range req.IDs {
		if err := h.service.Delete(r.Context(), resource, id, tc.ID); err != nil {
			h.respondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

// upload accepts a multipart file and stores its metadata as a record in the
// collection. Blob content storage belongs to the object-store collaborator.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !h.authorize(w, r, resource, access.ActionCreate) {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing file field")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	tc, _ := tenant.FromContext(r.Context())
	rec, err := h.service.Create(r.Context(), resource, map[string]any{
		"kind":        "upload",
		"filename":    header.Filename,
		"size":        header.Size,
		"contentType": header.Header.Get("Content-Type"),
	}, tc.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

// adminList returns the unfiltered collection. It requires the explicit
// admin grant on the resource for the caller's own tenant context.
func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	principal := access.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	ac := access.Context{
		Tenant:    tenant.Context{ID: principal.TenantID, Source: tenant.SourcePath},
		Principal: principal,
	}
	if err := h.engine.ValidateAccess(ac, resource, access.ActionAdmin); err != nil {
		httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", httpx.CodeAccessDenied, "not permitted")
		return
	}
	records, err := h.service.FindMany(r.Context(), resource, "")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

// respondError maps gateway errors onto HTTP responses. Cross-tenant
// detections return a generic 403 with no detail about the owning tenant.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var cross *CrossTenantError
	switch {
	case errors.As(err, &cross):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, ErrUnknownResource):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown resource collection")
	case errors.Is(err, ErrRecordExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "")
	default:
		if h.logger != nil {
			h.logger.Error("gateway request failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
