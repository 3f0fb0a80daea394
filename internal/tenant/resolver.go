// Package tenant resolves which store an actor operates against.
//
// Resolution is a pure function of the request hostname, the auth session
// and the stored profile. It fails closed: an unrecognised production host
// yields no store id rather than a guess.
package tenant

import (
	"net"
	"strings"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
)

// Source records which rule produced a resolution.
type Source string

const (
	SourceNone      Source = ""
	SourceDevHost   Source = "dev-host"
	SourceSubdomain Source = "subdomain"
	SourceSession   Source = "session"
	SourceProfile   Source = "profile"
	SourceGlobal    Source = "global"
	SourceFallback  Source = "fallback"
)

// DefaultDevTenantID is the demo tenant local hosts resolve to.
const DefaultDevTenantID = "store-1"

// DefaultDevHostPatterns match hosted development and preview environments.
var DefaultDevHostPatterns = []string{"web-platform", "stackblitz", "github.dev"}

// Options configures the development shortcuts. Production deployments
// disable both DevHostsEnabled and AllowFirstStoreFallback.
type Options struct {
	DevTenantID             string
	DevHostsEnabled         bool
	DevHostPatterns         []string
	AllowFirstStoreFallback bool
}

// DefaultOptions returns development-friendly settings with the first-store
// fallback disabled.
func DefaultOptions() Options {
	return Options{
		DevTenantID:     DefaultDevTenantID,
		DevHostsEnabled: true,
		DevHostPatterns: DefaultDevHostPatterns,
	}
}

// Session is the authenticated session as seen by the resolver.
type Session struct {
	Subject string
	// StoreID is an optional tenant claim carried by the session.
	StoreID string
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// HostStoreID is the tenant derived from the hostname alone.
	HostStoreID string `json:"hostStoreId,omitempty"`
	// HomeStoreID is the tenant after session/profile overrides, before
	// the admin global context is applied.
	HomeStoreID string `json:"homeStoreId,omitempty"`
	// StoreID is the default effective store: "all" for admins.
	StoreID string      `json:"storeId"`
	Role    domain.Role `json:"role"`
	Source  Source      `json:"source"`
}

// OK reports whether a store context was resolved.
func (r Resolution) OK() bool {
	return r.StoreID != ""
}

// Resolver applies Options to hostnames and profiles.
type Resolver struct {
	opts Options
}

// NewResolver creates a resolver.
func NewResolver(opts Options) *Resolver {
	if opts.DevTenantID == "" {
		opts.DevTenantID = DefaultDevTenantID
	}
	return &Resolver{opts: opts}
}

// Options returns the resolver configuration.
func (r *Resolver) Options() Options {
	return r.opts
}

// HostStoreID derives a store key from hostname. The second result is
// false when resolution fails closed.
func (r *Resolver) HostStoreID(hostname string) (string, Source, bool) {
	host := normalizeHost(hostname)

	if r.opts.DevHostsEnabled && r.isDevHost(host) {
		return r.opts.DevTenantID, SourceDevHost, true
	}
	if host == "" || net.ParseIP(host) != nil {
		return "", SourceNone, false
	}

	labels := strings.Split(host, ".")
	// A key needs subdomain + domain + tld; an apex host is ambiguous.
	if len(labels) < 3 {
		return "", SourceNone, false
	}
	key := domain.NormalizeSlug(labels[0])
	if key == "" || key == "www" || key == domain.AllStores {
		return "", SourceNone, false
	}
	return key, SourceSubdomain, true
}

// Resolve derives the actor's store and role. Session and profile store
// ids override the host, the profile taking precedence. Super admins
// always start in the global "all" context.
func (r *Resolver) Resolve(hostname string, session *Session, profile *domain.Profile) Resolution {
	var res Resolution

	if id, src, ok := r.HostStoreID(hostname); ok {
		res.HostStoreID = id
		res.HomeStoreID = id
		res.Source = src
	}
	if session != nil && session.StoreID != "" {
		res.HomeStoreID = session.StoreID
		res.Source = SourceSession
	}
	if profile != nil && profile.StoreID != "" {
		res.HomeStoreID = profile.StoreID
		res.Source = SourceProfile
	}

	res.Role = domain.RoleForProfile(profile)
	if res.Role == domain.RoleAdmin {
		res.StoreID = domain.AllStores
		res.Source = SourceGlobal
		return res
	}

	res.StoreID = res.HomeStoreID
	if res.StoreID == "" {
		res.Source = SourceNone
	}
	return res
}

// WithFallback applies the first-store fallback to an unresolved result.
// It is a no-op unless AllowFirstStoreFallback is set.
func (r *Resolver) WithFallback(res Resolution, stores []domain.Store) Resolution {
	if res.OK() || !r.opts.AllowFirstStoreFallback || len(stores) == 0 {
		return res
	}
	res.HomeStoreID = stores[0].ID
	res.StoreID = stores[0].ID
	res.Source = SourceFallback
	return res
}

// Effective returns the store id every downstream call runs against.
// Admins may narrow the global context to selectedAdminStoreID; other
// roles are pinned to their resolved store.
func Effective(res Resolution, selectedAdminStoreID string) (string, error) {
	if res.Role == domain.RoleAdmin {
		if selectedAdminStoreID == "" {
			return domain.AllStores, nil
		}
		return selectedAdminStoreID, nil
	}
	if res.StoreID == "" {
		return "", &domain.ErrTenantViolation{Operation: "resolve store"}
	}
	if selectedAdminStoreID != "" && selectedAdminStoreID != res.StoreID {
		return "", &domain.ErrForbidden{Action: "select another store"}
	}
	return res.StoreID, nil
}

func (r *Resolver) isDevHost(host string) bool {
	if host == "" || host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	for _, p := range r.opts.DevHostPatterns {
		if p != "" && strings.Contains(host, p) {
			return true
		}
	}
	return false
}

// normalizeHost lower-cases the host and strips any port, IPv6 brackets
// and trailing dot.
func normalizeHost(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	return strings.TrimSuffix(host, ".")
}
