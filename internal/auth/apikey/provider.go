package apikey

import (
	"context"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Provider authenticates API keys against a Store.
type Provider struct {
	store  *Store
	logger observability.Logger
}

// Option is a functional option for the provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider.
func WithLogger(logger observability.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates an API key provider.
func NewProvider(store *Store, opts ...Option) *Provider {
	p := &Provider{
		store:  store,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authenticate checks the X-Api-Key header, or a bearer value that is not
// JWT-shaped. Without either it reports util.ErrNotApplicable.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Identity, error) {
	key := creds.APIKey
	if key == "" && creds.Bearer != "" && !auth.LooksLikeJWT(creds.Bearer) {
		key = creds.Bearer
	}
	if key == "" {
		return nil, util.ErrNotApplicable
	}

	entry, ok := p.store.Lookup(key)
	if !ok {
		p.logger.WithContext(ctx).Debug("api key rejected")
		return nil, util.NewError(util.KindInvalidCredential, "unknown api key")
	}

	return auth.NewIdentity(entry.ID, auth.MethodAPIKey, auth.IdentityOptions{
		Name:    entry.Name,
		Allowed: auth.AllowedOrUnrestricted(entry.Allowed),
		Quota:   entry.Quota,
	}), nil
}
