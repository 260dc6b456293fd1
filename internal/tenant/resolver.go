package tenant

import (
	"net"
	"strings"
)

// reservedLabels are hostname labels that never name a tenant.
var reservedLabels = map[string]struct{}{
	"www":       {},
	"app":       {},
	"localhost": {},
}

// reservedSegments are leading path segments owned by the platform itself.
var reservedSegments = map[string]struct{}{
	"api":           {},
	"tenants":       {},
	"select-tenant": {},
	"static":        {},
	"assets":        {},
	"healthz":       {},
	"metrics":       {},
	"favicon.ico":   {},
	"sw.js":         {},
	"manifest.json": {},
}

// Resolver derives a tenant id from the request host and path.
// Strategies run in order, first match wins: subdomain, path, custom domain.
type Resolver struct {
	// BaseDomains lists domains the platform serves directly. A host that is
	// neither localhost nor under a base domain is treated as a custom domain.
	BaseDomains []string
}

// NewResolver constructs a Resolver for the given base domains.
func NewResolver(baseDomains []string) *Resolver {
	domains := make([]string, 0, len(baseDomains))
	for _, d := range baseDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Resolver{BaseDomains: domains}
}

// Resolve derives the tenant for a host/path pair. It returns ErrNoTenant when
// no strategy applies and an *InvalidTenantError when the derived id fails
// syntax validation. It never falls back to a default tenant.
func (r *Resolver) Resolve(host, path string) (Context, error) {
	host = normalizeHost(host)

	if id, ok := r.subdomainTenant(host); ok {
		return r.validated(id, SourceSubdomain)
	}
	if id, ok := pathTenant(path); ok {
		return r.validated(id, SourcePath)
	}
	if id, ok := r.customDomainTenant(host); ok {
		return r.validated(id, SourceCustomDomain)
	}
	return Context{}, ErrNoTenant
}

func (r *Resolver) validated(id string, source Source) (Context, error) {
	if err := ValidateID(id); err != nil {
		return Context{}, err
	}
	return Context{ID: id, Source: source}, nil
}

func (r *Resolver) subdomainTenant(host string) (string, bool) {
	if !strings.Contains(host, ".") {
		return "", false
	}
	// A bare base domain has no tenant label.
	for _, base := range r.BaseDomains {
		if host == base {
			return "", false
		}
	}
	label := host[:strings.Index(host, ".")]
	if _, reserved := reservedLabels[label]; reserved {
		return "", false
	}
	return label, true
}

func pathTenant(path string) (string, bool) {
	segment := firstSegment(path)
	if segment == "" {
		return "", false
	}
	if _, reserved := reservedSegments[segment]; reserved {
		return "", false
	}
	return segment, true
}

func (r *Resolver) customDomainTenant(host string) (string, bool) {
	if host == "" || host == "localhost" {
		return "", false
	}
	for _, base := range r.BaseDomains {
		if host == base || strings.HasSuffix(host, "."+base) {
			return "", false
		}
	}
	return strings.ReplaceAll(host, ".", "-"), true
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return path
}

// Passthrough reports whether a path is an internal or static route that must
// bypass tenant resolution entirely.
func Passthrough(path string) bool {
	for _, prefix := range []string{"/api/", "/static/", "/assets/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	switch path {
	case "/api", "/healthz", "/metrics", "/favicon.ico", "/sw.js", "/manifest.json":
		return true
	}
	return false
}
