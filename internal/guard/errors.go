// Package guard is the client-side isolation layer over the tenant API. It
// pins one tenant per client, namespaces every call, and independently
// re-verifies that returned data belongs to that tenant, so a buggy or
// hostile server cannot leak another tenant's records to a caller.
package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTenantContext indicates a call before SetTenant. This is a
	// programmer error; calls never fall back to an un-scoped request.
	ErrNoTenantContext = errors.New("guard: no tenant context set")
	// ErrTenantMismatch is the sentinel for *TenantMismatchError.
	ErrTenantMismatch = errors.New("guard: tenant mismatch")
	// ErrCrossTenantData is the sentinel for *CrossTenantDataError.
	ErrCrossTenantData = errors.New("guard: cross-tenant data detected")
)

// TenantMismatchError reports that the server explicitly rejected the call's
// tenant scope.
type TenantMismatchError struct {
	URL string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("guard: server reported tenant mismatch for %s", e.URL)
}

func (e *TenantMismatchError) Is(target error) bool { return target == ErrTenantMismatch }

// CrossTenantDataError reports that a response payload contained data
// belonging to another tenant. Element is the offending array index, or -1
// for a single-object payload. The foreign tenant's data never appears in
// the error text.
type CrossTenantDataError struct {
	URL     string
	Element int
}

func (e *CrossTenantDataError) Error() string {
	if e.Element < 0 {
		return fmt.Sprintf("guard: response from %s belongs to another tenant", e.URL)
	}
	return fmt.Sprintf("guard: response element %d from %s belongs to another tenant", e.Element, e.URL)
}

func (e *CrossTenantDataError) Is(target error) bool { return target == ErrCrossTenantData }

// APIError is any other non-OK response from the tenant API. Idempotent GETs
// may be retried at the caller's discretion; the guard itself never retries.
type APIError struct {
	Status  int
	URL     string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("guard: api returned %d for %s: %s", e.Status, e.URL, e.Message)
}
