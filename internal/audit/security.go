// Package audit records security events. Cross-tenant detections are never
// silent: each one lands here in addition to the error surfaced to the caller.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds.
const (
	KindCrossTenantAccess = "cross_tenant_access"
	KindTenantMismatch    = "tenant_mismatch"
)

// SecurityEvent is one recorded isolation incident. OwnerTenant identifies
// whose data was targeted; it is stored server-side only and never echoed to
// the requesting client.
type SecurityEvent struct {
	Kind        string
	TenantID    string
	PrincipalID string
	Resource    string
	RecordID    string
	OwnerTenant string
	At          time.Time
}

// SecurityLogger persists security events and mirrors them to the structured
// log. A nil pool degrades to log-only, so detections are never dropped just
// because the audit table is unavailable.
type SecurityLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSecurityLogger returns a SecurityLogger.
func NewSecurityLogger(pool *pgxpool.Pool, logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{pool: pool, logger: logger}
}

// Record stores the event. Persistence failures are logged, not returned:
// the caller is already in an error path and must surface the violation.
func (l *SecurityLogger) Record(ctx context.Context, event SecurityEvent) {
	if l == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if l.logger != nil {
		l.logger.Error("security event",
			slog.String("kind", event.Kind),
			slog.String("tenant", event.TenantID),
			slog.String("principal", event.PrincipalID),
			slog.String("resource", event.Resource),
			slog.String("record", event.RecordID),
			slog.String("owner_tenant", event.OwnerTenant))
	}
	if l.pool == nil {
		return
	}
	meta, err := json.Marshal(map[string]string{
		"principal":    event.PrincipalID,
		"record":       event.RecordID,
		"owner_tenant": event.OwnerTenant,
	})
	if err != nil {
		return
	}
	if _, err := l.pool.Exec(ctx, `
		INSERT INTO security_events (kind, tenant_id, resource, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.Kind, event.TenantID, event.Resource, meta, event.At); err != nil && l.logger != nil {
		l.logger.Error("security event persist failed", slog.Any("error", err))
	}
}
