package auth

import (
	"context"
	"slices"
)

// Method is the authentication method that produced an identity.
type Method string

// Authentication methods.
const (
	MethodCertificateHeader Method = "certificate_header"
	MethodAPIKey            Method = "api_key"
	MethodToken             Method = "token"
	MethodDelegated         Method = "delegated"
)

// Quota is a per-identity rate override.
type Quota struct {
	// RatePerSecond is the refill rate in requests per second.
	RatePerSecond float64 `json:"rate_per_second"`

	// Burst is the bucket capacity.
	Burst int `json:"burst"`
}

// Identity is an authenticated caller. It is immutable once built: the
// constructors copy slices and maps, and accessors return copies.
type Identity struct {
	id      string
	method  Method
	name    string
	allowed []string
	scopes  []string
	quota   *Quota
	claims  map[string]any
}

// IdentityOptions carries the optional attributes of an identity.
type IdentityOptions struct {
	Name    string
	Allowed []string
	Scopes  []string
	Quota   *Quota
	Claims  map[string]any
}

// NewIdentity builds an identity. A nil Allowed list grants nothing; use
// Unrestricted() to grant every capability.
func NewIdentity(id string, method Method, opts IdentityOptions) *Identity {
	ident := &Identity{
		id:      id,
		method:  method,
		name:    opts.Name,
		allowed: slices.Clone(opts.Allowed),
		scopes:  slices.Clone(opts.Scopes),
	}
	if ident.allowed == nil {
		ident.allowed = []string{}
	}
	if opts.Quota != nil {
		q := *opts.Quota
		ident.quota = &q
	}
	if len(opts.Claims) > 0 {
		ident.claims = make(map[string]any, len(opts.Claims))
		for k, v := range opts.Claims {
			ident.claims[k] = v
		}
	}
	return ident
}

// Unrestricted returns the pattern list granting every capability.
func Unrestricted() []string {
	return []string{WildcardCapability}
}

// AllowedOrUnrestricted treats an empty configured list as unrestricted.
func AllowedOrUnrestricted(configured []string) []string {
	if len(configured) == 0 {
		return Unrestricted()
	}
	return slices.Clone(configured)
}

// ID returns the unique identity id.
func (i *Identity) ID() string { return i.id }

// Method returns how the identity authenticated.
func (i *Identity) Method() Method { return i.method }

// Name returns the display name, falling back to the id.
func (i *Identity) Name() string {
	if i.name == "" {
		return i.id
	}
	return i.name
}

// AllowedPatterns returns the capability glob patterns.
func (i *Identity) AllowedPatterns() []string { return slices.Clone(i.allowed) }

// Scopes returns the granted scopes.
func (i *Identity) Scopes() []string { return slices.Clone(i.scopes) }

// Quota returns the rate override, or nil when the global default applies.
func (i *Identity) Quota() *Quota {
	if i.quota == nil {
		return nil
	}
	q := *i.quota
	return &q
}

// Claim returns a single claim value.
func (i *Identity) Claim(name string) (any, bool) {
	v, ok := i.claims[name]
	return v, ok
}

type identityKey struct{}

// ContextWithIdentity stores the identity in ctx.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
