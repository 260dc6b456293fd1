package access

// Registry is the reviewable allow-list of resources and actions. Resources
// and actions stay free-form strings for flexibility, but every string the
// engine accepts is declared here in one place so a typo denies loudly
// instead of silently colliding.
type Registry struct {
	resources map[string]struct{}
	actions   map[string]struct{}
}

// NewRegistry builds a registry from explicit resource and action lists.
func NewRegistry(resources, actions []string) *Registry {
	r := &Registry{
		resources: make(map[string]struct{}, len(resources)),
		actions:   make(map[string]struct{}, len(actions)),
	}
	for _, res := range resources {
		r.resources[res] = struct{}{}
	}
	for _, act := range actions {
		r.actions[act] = struct{}{}
	}
	return r
}

// DefaultRegistry lists the resource collections and actions the platform
// serves. Adding a collection means adding it here.
func DefaultRegistry() *Registry {
	return NewRegistry(
		[]string{
			"tanks",
			"deliveries",
			"drivers",
			"vehicles",
			"inventory",
			"alerts",
			"documents",
			"reports",
			"users",
			"settings",
		},
		[]string{
			ActionRead,
			ActionCreate,
			ActionUpdate,
			ActionDelete,
			ActionAdmin,
			"export",
			"upload",
		},
	)
}

// KnownResource reports whether the resource is declared.
func (r *Registry) KnownResource(resource string) bool {
	_, ok := r.resources[resource]
	return ok
}

// KnownAction reports whether the action is declared.
func (r *Registry) KnownAction(action string) bool {
	_, ok := r.actions[action]
	return ok
}
