package gateway

import "context"

// Store is the persistence contract for tenant-partitioned collections.
// Implementations must evaluate tenant checks against the record's current
// stored state so a concurrent create or delete on the same id resolves to a
// clean not-found or a clean cross-tenant rejection, never a partial write.
type Store interface {
	// List returns the collection filtered to tenantID. An empty tenantID
	// returns the collection unfiltered; only the admin path may pass it.
	List(ctx context.Context, resource, tenantID string) ([]Record, error)

	// Get returns the record by id. When tenantID is non-empty and the record
	// belongs to another tenant, it returns *CrossTenantError, not nil.
	Get(ctx context.Context, resource, id, tenantID string) (Record, error)

	// Insert stores a new record as stamped by the service.
	Insert(ctx context.Context, resource string, rec Record) (Record, error)

	// Update merges data into the record's fields if it belongs to tenantID.
	Update(ctx context.Context, resource, id, tenantID string, data map[string]any) (Record, error)

	// Delete removes the record if it belongs to tenantID.
	Delete(ctx context.Context, resource, id, tenantID string) error
}
