package access

import (
	"hash/fnv"
)

// HasFeature reports whether the flag is available to the context. Unknown or
// disabled flags are unavailable. When restrictions are present, every
// sub-restriction that is specified must pass. Percentage rollout is decided
// by a stable hash of the flag key and tenant id, so a tenant's outcome never
// changes between calls or process restarts.
func (e *Engine) HasFeature(ac Context, key string) bool {
	flag, ok := ac.Flags[key]
	if !ok || !flag.Enabled {
		return false
	}
	if ac.Tenant.ID == "" {
		return false
	}
	if r := flag.Restrictions; r != nil {
		if len(r.Plans) > 0 && !containsString(r.Plans, ac.Plan) {
			return false
		}
		if len(r.TenantIDs) > 0 && !containsString(r.TenantIDs, ac.Tenant.ID) {
			return false
		}
		if len(r.UserRoles) > 0 {
			if ac.Principal == nil || !containsRole(r.UserRoles, ac.Principal.Role) {
				return false
			}
		}
	}
	if flag.RolloutPercentage != nil {
		return rolloutBucket(key, ac.Tenant.ID) < *flag.RolloutPercentage
	}
	return true
}

// rolloutBucket maps (key, tenantID) onto 0..99 with FNV-1a. The function is
// pure; the same pair always lands in the same bucket.
func rolloutBucket(key, tenantID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	_, _ = h.Write([]byte(tenantID))
	return int(h.Sum32() % 100)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsRole(list []Role, v Role) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
