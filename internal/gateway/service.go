package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/audit"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
)

// Service enforces tenant partitioning over a Store: reads are filtered,
// writes are stamped with the authenticated tenant, and every cross-tenant
// detection is recorded as a security event before it propagates.
type Service struct {
	store    Store
	registry *access.Registry
	security *audit.SecurityLogger
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, registry *access.Registry, security *audit.SecurityLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if registry == nil {
		registry = access.DefaultRegistry()
	}
	return &Service{store: store, registry: registry, security: security, metrics: metrics, logger: logger}
}

// FindMany lists the collection for one tenant. An empty tenantID returns
// the unfiltered collection; the HTTP layer exposes that solely behind the
// admin grant.
func (s *Service) FindMany(ctx context.Context, resource, tenantID string) ([]Record, error) {
	if !s.registry.KnownResource(resource) {
		return nil, ErrUnknownResource
	}
	return s.store.List(ctx, resource, tenantID)
}

// FindOne fetches one record scoped to the tenant. A record that exists
// under another tenant surfaces as *CrossTenantError, never as not-found and
// never as the record.
func (s *Service) FindOne(ctx context.Context, resource, id, tenantID string) (Record, error) {
	if !s.registry.KnownResource(resource) {
		return Record{}, ErrUnknownResource
	}
	rec, err := s.store.Get(ctx, resource, id, tenantID)
	if err != nil {
		return Record{}, s.noteViolation(ctx, err)
	}
	return rec, nil
}

// Create stores a new record stamped with the authenticated tenant. Identity
// fields supplied by the client are discarded; the tenant id always comes
// from the request context, so a forged body cannot plant a record in
// another tenant's partition.
func (s *Service) Create(ctx context.Context, resource string, data map[string]any, tenantID string) (Record, error) {
	if !s.registry.KnownResource(resource) {
		return Record{}, ErrUnknownResource
	}
	now := time.Now().UTC()
	rec := Record{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Data:      stripManaged(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.store.Insert(ctx, resource, rec)
}

// Update merges updates into a record owned by the tenant.
func (s *Service) Update(ctx context.Context, resource, id string, updates map[string]any, tenantID string) (Record, error) {
	if !s.registry.KnownResource(resource) {
		return Record{}, ErrUnknownResource
	}
	rec, err := s.store.Update(ctx, resource, id, tenantID, stripManaged(updates))
	if err != nil {
		return Record{}, s.noteViolation(ctx, err)
	}
	return rec, nil
}

// Delete removes a record owned by the tenant.
func (s *Service) Delete(ctx context.Context, resource, id, tenantID string) error {
	if !s.registry.KnownResource(resource) {
		return ErrUnknownResource
	}
	if err := s.store.Delete(ctx, resource, id, tenantID); err != nil {
		return s.noteViolation(ctx, err)
	}
	return nil
}

// noteViolation records cross-tenant detections before the error propagates.
func (s *Service) noteViolation(ctx context.Context, err error) error {
	var cross *CrossTenantError
	if !errors.As(err, &cross) {
		return err
	}
	principalID := ""
	if p := access.PrincipalFromContext(ctx); p != nil {
		principalID = p.ID
	}
	s.security.Record(ctx, audit.SecurityEvent{
		Kind:        audit.KindCrossTenantAccess,
		TenantID:    cross.TenantID,
		PrincipalID: principalID,
		Resource:    cross.Resource,
		RecordID:    cross.RecordID,
		OwnerTenant: cross.OwnerTenant(),
	})
	if s.metrics != nil {
		s.metrics.ObserveIsolationViolation("gateway")
	}
	if s.logger != nil {
		s.logger.Error("cross-tenant access blocked",
			slog.String("resource", cross.Resource),
			slog.String("record", cross.RecordID),
			slog.String("tenant", cross.TenantID))
	}
	return err
}

func stripManaged(data map[string]any) map[string]any {
	cleaned := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case FieldID, FieldTenantID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}
