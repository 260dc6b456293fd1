// Package tenant resolves and validates tenant identity for inbound requests.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
)

// Source identifies which resolution strategy produced a tenant id.
type Source string

const (
	SourceSubdomain    Source = "subdomain"
	SourcePath         Source = "path"
	SourceCustomDomain Source = "custom_domain"
)

// Context carries the tenant identity for one request. It is immutable
// after resolution; handlers receive it by value and must not rebuild it.
type Context struct {
	ID     string
	Source Source
}

var (
	// ErrNoTenant indicates no strategy could derive a tenant from the request.
	ErrNoTenant = errors.New("tenant: no tenant in request")
)

// InvalidTenantError reports a tenant id that fails syntax validation.
// It is request-fatal: the request must not proceed with a fallback tenant.
type InvalidTenantError struct {
	ID string
}

func (e *InvalidTenantError) Error() string {
	return fmt.Sprintf("tenant: invalid tenant id %q", e.ID)
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidateID checks tenant id syntax: 1-50 chars of [A-Za-z0-9_-].
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return &InvalidTenantError{ID: id}
	}
	return nil
}
