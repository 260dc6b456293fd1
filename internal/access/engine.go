package access

import (
	"log/slog"
)

// Engine answers permission and feature queries. It carries only immutable
// configuration, so one Engine instance is safe for concurrent use across
// requests; all per-request state arrives in the Context argument.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine constructs an Engine. A nil registry falls back to the default
// allow-list; a nil logger disables decision logging.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Engine{registry: registry, logger: logger}
}

// HasPermission reports whether the principal explicitly holds
// (resource, action) and belongs to the context tenant. Missing tenant or
// principal always denies; it never errors. A principal whose tenant differs
// from the request tenant is denied here as a plain false; the gateway layer
// raises the stronger cross-tenant error where record identity is known.
func (e *Engine) HasPermission(ac Context, resource, action string) bool {
	if ac.Principal == nil || ac.Tenant.ID == "" {
		return false
	}
	if !e.registry.KnownResource(resource) || !e.registry.KnownAction(action) {
		e.warn("permission check on undeclared resource or action",
			slog.String("resource", resource), slog.String("action", action))
		return false
	}
	if ac.Principal.TenantID != ac.Tenant.ID {
		e.warn("principal tenant differs from request tenant",
			slog.String("principal", ac.Principal.ID),
			slog.String("tenant", ac.Tenant.ID))
		return false
	}
	return ac.Principal.HasGrant(Permission{Resource: resource, Action: action})
}

// HasAnyPermission is the OR combinator over HasPermission.
func (e *Engine) HasAnyPermission(ac Context, perms []Permission) bool {
	for _, p := range perms {
		if e.HasPermission(ac, p.Resource, p.Action) {
			return true
		}
	}
	return false
}

// HasAllPermissions is the AND combinator over HasPermission. An empty list
// is vacuously satisfied.
func (e *Engine) HasAllPermissions(ac Context, perms []Permission) bool {
	for _, p := range perms {
		if !e.HasPermission(ac, p.Resource, p.Action) {
			return false
		}
	}
	return true
}

// CanAccess reports read permission on the resource.
func (e *Engine) CanAccess(ac Context, resource string) bool {
	return e.HasPermission(ac, resource, ActionRead)
}

// CanCreate reports create permission on the resource.
func (e *Engine) CanCreate(ac Context, resource string) bool {
	return e.HasPermission(ac, resource, ActionCreate)
}

// CanUpdate reports update permission on the resource.
func (e *Engine) CanUpdate(ac Context, resource string) bool {
	return e.HasPermission(ac, resource, ActionUpdate)
}

// CanDelete reports delete permission on the resource.
func (e *Engine) CanDelete(ac Context, resource string) bool {
	return e.HasPermission(ac, resource, ActionDelete)
}

// CanAdmin reports admin permission on the resource. This is an explicit
// grant like any other; it is never inferred from the principal's role.
func (e *Engine) CanAdmin(ac Context, resource string) bool {
	return e.HasPermission(ac, resource, ActionAdmin)
}

// IsAdmin reports whether the principal carries the admin role. Callers may
// use this shortcut explicitly; HasPermission never substitutes it.
func (e *Engine) IsAdmin(ac Context) bool {
	return ac.Principal != nil && ac.Principal.Role == RoleAdmin
}

// ValidateAccess is the fail-loud counterpart of HasPermission, for call
// sites where silent denial is unacceptable.
func (e *Engine) ValidateAccess(ac Context, resource, action string) error {
	if !e.HasPermission(ac, resource, action) {
		return &AccessDeniedError{Resource: resource, Action: action}
	}
	return nil
}

// ValidateFeature is the fail-loud counterpart of HasFeature.
func (e *Engine) ValidateFeature(ac Context, key string) error {
	if !e.HasFeature(ac, key) {
		return &FeatureUnavailableError{Key: key}
	}
	return nil
}

// Summary returns a diagnostics snapshot of the context. It is for display
// only and must not be fed back into authorization decisions.
func (e *Engine) Summary(ac Context) Summary {
	s := Summary{TenantID: ac.Tenant.ID, IsAdmin: e.IsAdmin(ac)}
	if ac.Principal != nil {
		s.PrincipalID = ac.Principal.ID
		s.Role = ac.Principal.Role
		s.Permissions = append([]Permission(nil), ac.Principal.Permissions...)
	}
	return s
}

func (e *Engine) warn(msg string, attrs ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, attrs...)
	}
}
