// Package access computes permission and feature-flag decisions for a
// request-scoped principal and tenant. Decision functions are pure: they take
// an explicit immutable Context and hold no per-request state.
package access

import (
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

// Role is the coarse role attached to a principal.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// Permission is an exact-match (resource, action) capability grant. There is
// no wildcard or hierarchy: holding admin on a resource does not imply read.
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Canonical actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionAdmin  = "admin"
)

// Principal is the authenticated actor. Loaded once per request by the auth
// collaborator and read-only inside this package.
type Principal struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenantId"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// HasGrant reports whether the principal explicitly holds the permission.
func (p *Principal) HasGrant(perm Permission) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// TenantRestrictions limits a feature flag to tenants and users matching all
// of the sub-restrictions that are present.
type TenantRestrictions struct {
	Plans     []string `json:"plans,omitempty"`
	TenantIDs []string `json:"tenantIds,omitempty"`
	UserRoles []Role   `json:"userRoles,omitempty"`
}

// FeatureFlag is a read-only flag definition snapshotted per decision.
type FeatureFlag struct {
	Key               string              `json:"key" validate:"required"`
	Enabled           bool                `json:"enabled"`
	RolloutPercentage *int                `json:"rolloutPercentage,omitempty" validate:"omitempty,min=0,max=100"`
	Restrictions      *TenantRestrictions `json:"tenantRestrictions,omitempty"`
}

// Context is the immutable request-scoped decision input: tenant identity,
// the tenant's plan, the principal, and the active flag snapshot. One Context
// is built per request and never shared or mutated across requests.
type Context struct {
	Tenant    tenant.Context
	Plan      string
	Principal *Principal
	Flags     map[string]FeatureFlag
}

// Summary is a read-only diagnostics snapshot for UI consumption. It must not
// feed authorization decisions elsewhere.
type Summary struct {
	PrincipalID string       `json:"principalId"`
	TenantID    string       `json:"tenantId"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	IsAdmin     bool         `json:"isAdmin"`
}
