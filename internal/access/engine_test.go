package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
)

func viewerContext() Context {
	return Context{
		Tenant: tenant.Context{ID: "acme", Source: tenant.SourceSubdomain},
		Principal: &Principal{
			ID:       "u-1",
			TenantID: "acme",
			Role:     RoleViewer,
			Permissions: []Permission{
				{Resource: "tanks", Action: ActionRead},
				{Resource: "tanks", Action: ActionCreate},
			},
		},
	}
}

func TestHasPermissionExactMatch(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()

	require.True(t, e.HasPermission(ac, "tanks", ActionRead))
	require.True(t, e.HasPermission(ac, "tanks", ActionCreate))
	require.False(t, e.HasPermission(ac, "tanks", ActionDelete))
	require.False(t, e.HasPermission(ac, "deliveries", ActionRead))
}

func TestHasPermissionNoHierarchyFromAdminGrant(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()
	ac.Principal.Permissions = []Permission{{Resource: "tanks", Action: ActionAdmin}}

	require.True(t, e.HasPermission(ac, "tanks", ActionAdmin))
	require.False(t, e.HasPermission(ac, "tanks", ActionRead))
	require.False(t, e.HasPermission(ac, "tanks", ActionUpdate))
}

func TestHasPermissionMissingContextDenies(t *testing.T) {
	e := NewEngine(nil, nil)

	require.False(t, e.HasPermission(Context{}, "tanks", ActionRead))

	ac := viewerContext()
	ac.Principal = nil
	require.False(t, e.HasPermission(ac, "tanks", ActionRead))

	ac = viewerContext()
	ac.Tenant = tenant.Context{}
	require.False(t, e.HasPermission(ac, "tanks", ActionRead))
}

func TestHasPermissionTenantMismatchDenies(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()
	ac.Principal.TenantID = "globex"

	require.False(t, e.HasPermission(ac, "tanks", ActionRead))
}

func TestHasPermissionUndeclaredResourceDenies(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()
	ac.Principal.Permissions = append(ac.Principal.Permissions, Permission{Resource: "tansk", Action: ActionRead})

	require.False(t, e.HasPermission(ac, "tansk", ActionRead))
}

func TestCombinators(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()

	require.True(t, e.HasAllPermissions(ac, []Permission{
		{Resource: "tanks", Action: ActionRead},
		{Resource: "tanks", Action: ActionCreate},
	}))
	require.False(t, e.HasAllPermissions(ac, []Permission{
		{Resource: "tanks", Action: ActionRead},
		{Resource: "tanks", Action: ActionDelete},
	}))
	require.True(t, e.HasAnyPermission(ac, []Permission{
		{Resource: "tanks", Action: ActionDelete},
		{Resource: "tanks", Action: ActionRead},
	}))
	require.False(t, e.HasAnyPermission(ac, nil))
	require.True(t, e.HasAllPermissions(ac, nil))
}

func TestConvenienceCheckers(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()

	require.True(t, e.CanAccess(ac, "tanks"))
	require.True(t, e.CanCreate(ac, "tanks"))
	require.False(t, e.CanUpdate(ac, "tanks"))
	require.False(t, e.CanDelete(ac, "tanks"))
	require.False(t, e.CanAdmin(ac, "tanks"))
}

func TestIsAdmin(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()

	require.False(t, e.IsAdmin(ac))
	ac.Principal.Role = RoleAdmin
	require.True(t, e.IsAdmin(ac))
	ac.Principal = nil
	require.False(t, e.IsAdmin(ac))
}

func TestValidateAccess(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()

	require.NoError(t, e.ValidateAccess(ac, "tanks", ActionRead))

	err := e.ValidateAccess(ac, "tanks", ActionDelete)
	require.ErrorIs(t, err, ErrAccessDenied)

	var denied *AccessDeniedError
	require.True(t, errors.As(err, &denied))
	require.Equal(t, "tanks", denied.Resource)
	require.Equal(t, ActionDelete, denied.Action)
}

func TestViewerEndToEnd(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := Context{
		Tenant: tenant.Context{ID: "acme", Source: tenant.SourceSubdomain},
		Principal: &Principal{
			ID:          "u-7",
			TenantID:    "acme",
			Role:        RoleViewer,
			Permissions: []Permission{{Resource: "tanks", Action: ActionRead}},
		},
	}

	require.True(t, e.HasPermission(ac, "tanks", ActionRead))

	var denied *AccessDeniedError
	err := e.ValidateAccess(ac, "tanks", ActionDelete)
	require.True(t, errors.As(err, &denied))
	require.Equal(t, "tanks", denied.Resource)
	require.Equal(t, ActionDelete, denied.Action)

	require.False(t, e.IsAdmin(ac))
	require.False(t, e.CanAdmin(ac, "users"))
}

func TestSummarySnapshot(t *testing.T) {
	e := NewEngine(nil, nil)
	ac := viewerContext()

	summary := e.Summary(ac)
	require.Equal(t, "u-1", summary.PrincipalID)
	require.Equal(t, "acme", summary.TenantID)
	require.Equal(t, RoleViewer, summary.Role)
	require.False(t, summary.IsAdmin)
	require.Len(t, summary.Permissions, 2)

	// The snapshot is detached from the principal's permission slice.
	summary.Permissions[0] = Permission{Resource: "x", Action: "y"}
	require.Equal(t, "tanks", ac.Principal.Permissions[0].Resource)
}
