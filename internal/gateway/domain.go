// Package gateway is the tenant-scoped CRUD facade over resource
// collections. Every read is filtered to the requesting tenant and every
// write against another tenant's record is rejected loudly, never converted
// to a silent not-found.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"encoding/json"
)

// Reserved record fields managed by the gateway. Client-supplied values for
// these are discarded on create and update.
const (
	FieldID        = "id"
	FieldTenantID  = "tenantId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Record is a stored entity in a tenant-partitioned collection. TenantID is
// stamped at creation and never changes afterwards.
type Record struct {
	ID        string
	TenantID  string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON flattens Data with the managed identity fields on top, so API
// payloads carry tenantId where clients can re-verify it.
func (rec Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(rec.Data)+4)
	for k, v := range rec.Data {
		flat[k] = v
	}
	flat[FieldID] = rec.ID
	flat[FieldTenantID] = rec.TenantID
	flat[FieldCreatedAt] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	flat[FieldUpdatedAt] = rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(flat)
}

// clone returns a copy whose Data tree is independent of the original, so a
// caller mutating a returned record never reaches into store state.
func (rec Record) clone() Record {
	rec.Data = cloneData(rec.Data)
	return rec
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the JSON-shaped containers; scalars are immutable
// and copied by value.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

var (
	// ErrRecordNotFound indicates no record with the id exists in the collection.
	ErrRecordNotFound = errors.New("gateway: record not found")
	// ErrRecordExists indicates an id collision on insert.
	ErrRecordExists = errors.New("gateway: record already exists")
	// ErrUnknownResource indicates a collection outside the declared registry.
	ErrUnknownResource = errors.New("gateway: unknown resource")
)

// CrossTenantError reports that a record exists but belongs to a different
// tenant than the request. Distinct from not-found so callers can alert on
// it. The owning tenant is carried for the security log only and deliberately
// kept out of the error text.
type CrossTenantError struct {
	Resource    string
	RecordID    string
	TenantID    string
	ownerTenant string
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("gateway: cross-tenant access to %s/%s denied for tenant %s",
		e.Resource, e.RecordID, e.TenantID)
}

// OwnerTenant exposes the owning tenant for audit recording.
func (e *CrossTenantError) OwnerTenant() string { return e.ownerTenant }
