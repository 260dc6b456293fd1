package gateway

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the development
// mode and tests; the check-then-write sections run under one lock so
// concurrent operations on the same id serialize cleanly.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Record)}
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, resource, tenantID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0)
	for _, rec := range s.collections[resource] {
		if tenantID != "" && rec.TenantID != tenantID {
			continue
		}
		records = append(records, rec.clone())
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, resource, id, tenantID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[resource][id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return Record{}, &CrossTenantError{Resource: resource, RecordID: id, TenantID: tenantID, ownerTenant: rec.TenantID}
	}
	return rec.clone(), nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, resource string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collections[resource]
	if !ok {
		collection = make(map[string]Record)
		s.collections[resource] = collection
	}
	if _, exists := collection[rec.ID]; exists {
		return Record{}, ErrRecordExists
	}
	collection[rec.ID] = rec.clone()
	return rec, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, resource, id, tenantID string, data map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[resource][id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return Record{}, &CrossTenantError{Resource: resource, RecordID: id, TenantID: tenantID, ownerTenant: rec.TenantID}
	}
	updated := rec.clone()
	for k, v := range data {
		updated.Data[k] = v
	}
	updated.UpdatedAt = time.Now().UTC()
	s.collections[resource][id] = updated
	return updated.clone(), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, resource, id, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[resource][id]
	if !ok {
		return ErrRecordNotFound
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return &CrossTenantError{Resource: resource, RecordID: id, TenantID: tenantID, ownerTenant: rec.TenantID}
	}
	delete(s.collections[resource], id)
	return nil
}
