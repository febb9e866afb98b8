package tenant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential is returned when the upstream API key for a tenant
// is not configured.
var ErrMissingCredential = errors.New("missing upstream credential")

// Default organizational domains.
const (
	DefaultBEDomain = "techorama.be"
	DefaultNLDomain = "techorama.nl"
)

// Options configures a Router.
type Options struct {
	BEDomain string
	NLDomain string

	// BEKey and NLKey are the Streak API keys. Either may be empty; the
	// error surfaces only when a request needs that tenant.
	BEKey string
	NLKey string

	// Cache holds NL pipeline keys observed in listings. Nil creates a
	// cache with DefaultKeyTTL.
	Cache *KeyCache
}

// Router classifies pipelines, selects credentials and evaluates domain
// scope. It holds no request state and is safe for concurrent use.
type Router struct {
	beDomain string
	nlDomain string
	marker   string
	cache    *KeyCache
	creds    map[Tenant]string
}

// NewRouter builds a Router from opts.
func NewRouter(opts Options) *Router {
	be := strings.ToLower(strings.TrimSpace(opts.BEDomain))
	if be == "" {
		be = DefaultBEDomain
	}
	nl := strings.ToLower(strings.TrimSpace(opts.NLDomain))
	if nl == "" {
		nl = DefaultNLDomain
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewKeyCache(DefaultKeyTTL)
	}
	return &Router{
		beDomain: be,
		nlDomain: nl,
		marker:   Marker(nl),
		cache:    cache,
		creds: map[Tenant]string{
			BE: strings.TrimSpace(opts.BEKey),
			NL: strings.TrimSpace(opts.NLKey),
		},
	}
}

// Classify returns the tenant owning pipelineKey. It never calls upstream:
// the observed-key cache is consulted first, then the NL key marker.
func (r *Router) Classify(pipelineKey string) Tenant {
	if r.cache.Contains(pipelineKey) {
		return NL
	}
	if strings.Contains(pipelineKey, r.marker) {
		return NL
	}
	return BE
}

// Credential returns the API key for t.
func (r *Router) Credential(t Tenant) (string, error) {
	key, ok := r.creds[t]
	if !ok {
		return "", fmt.Errorf("unknown tenant %q", t)
	}
	if key == "" {
		return "", fmt.Errorf("%w for tenant %s", ErrMissingCredential, t)
	}
	return key, nil
}

// Allowed reports whether domain is on the allow-list.
func (r *Router) Allowed(domain string) bool {
	domain = strings.ToLower(domain)
	return domain == r.beDomain || domain == r.nlDomain
}

// Domains returns the allow-listed domains, BE first.
func (r *Router) Domains() []string {
	return []string{r.beDomain, r.nlDomain}
}

// TenantsFor returns the tenants visible to users of domain. BE users see
// both tenants, NL users see only NL, everyone else sees nothing.
func (r *Router) TenantsFor(domain string) []Tenant {
	switch strings.ToLower(domain) {
	case r.beDomain:
		return []Tenant{BE, NL}
	case r.nlDomain:
		return []Tenant{NL}
	default:
		return nil
	}
}

// CanAccess reports whether a user of domain may view or modify
// pipelineKey.
func (r *Router) CanAccess(domain, pipelineKey string) bool {
	switch strings.ToLower(domain) {
	case r.beDomain:
		return true
	case r.nlDomain:
		return r.Classify(pipelineKey) == NL
	default:
		return false
	}
}

// ObserveNL records pipeline keys returned by an NL listing.
func (r *Router) ObserveNL(keys ...string) {
	r.cache.Add(keys...)
}
