// Package resolver composes the identity providers into the single
// authentication step of the request pipeline.
//
// Providers are tried in a fixed order: certificate headers, API key,
// token, delegated flow. The first success wins. A provider that does not
// see its credential shape is skipped; among the failures of the others,
// the most specific one is returned.
package resolver

import (
	"context"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/auth/apikey"
	"github.com/vyrodovalexey/avamcp/internal/auth/jwt"
	"github.com/vyrodovalexey/avamcp/internal/auth/mtls"
	"github.com/vyrodovalexey/avamcp/internal/auth/oauth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Providers is the closed set of identity providers. Nil fields are
// disabled.
type Providers struct {
	Certificate *mtls.Provider
	APIKey      *apikey.Provider
	Token       *jwt.Provider
	Delegated   *oauth.Provider
}

// Empty reports whether no provider is configured.
func (p Providers) Empty() bool {
	return p.Certificate == nil && p.APIKey == nil && p.Token == nil && p.Delegated == nil
}

type authenticateFunc func(ctx context.Context, creds *auth.Credentials) (*auth.Identity, error)

type step struct {
	method       auth.Method
	authenticate authenticateFunc
}

// Resolver authenticates requests against the configured providers.
type Resolver struct {
	steps   []step
	logger  observability.Logger
	metrics *auth.Metrics
}

// Option is a functional option for the resolver.
type Option func(*Resolver)

// WithLogger sets the logger for the resolver.
func WithLogger(logger observability.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the authentication metrics.
func WithMetrics(metrics *auth.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// New creates a resolver over providers.
func New(providers Providers, opts ...Option) *Resolver {
	r := &Resolver{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(r)
	}

	if providers.Certificate != nil {
		r.steps = append(r.steps, step{auth.MethodCertificateHeader, providers.Certificate.Authenticate})
	}
	if providers.APIKey != nil {
		r.steps = append(r.steps, step{auth.MethodAPIKey, providers.APIKey.Authenticate})
	}
	if providers.Token != nil {
		r.steps = append(r.steps, step{auth.MethodToken, providers.Token.Authenticate})
	}
	if providers.Delegated != nil {
		r.steps = append(r.steps, step{auth.MethodDelegated, providers.Delegated.Authenticate})
	}
	return r
}

// Methods returns the enabled methods in the order they are tried.
func (r *Resolver) Methods() []auth.Method {
	methods := make([]auth.Method, 0, len(r.steps))
	for _, s := range r.steps {
		methods = append(methods, s.method)
	}
	return methods
}

// Resolve returns the identity of the first provider that accepts creds.
// When none does it returns the highest-ranked failure, or a
// missing-credential error if no provider recognized any credential.
func (r *Resolver) Resolve(ctx context.Context, creds *auth.Credentials) (*auth.Identity, error) {
	var (
		best     error
		bestRank = -1
	)

	for _, s := range r.steps {
		start := time.Now()
		identity, err := s.authenticate(ctx, creds)
		if err == nil {
			r.metrics.RecordAttempt(s.method, "success", time.Since(start))
			r.logger.WithContext(ctx).Debug("authenticated",
				observability.String("method", string(s.method)),
				observability.String("identity", identity.ID()),
			)
			return identity, nil
		}

		kind := util.KindOf(err)
		if kind == util.KindNotApplicable {
			continue
		}
		r.metrics.RecordAttempt(s.method, kind.String(), time.Since(start))

		if rank := failureRank(s.method, kind); rank > bestRank {
			best, bestRank = err, rank
		}
	}

	if best == nil {
		return nil, util.NewError(util.KindMissingCredential, "no credentials presented")
	}
	r.logger.WithContext(ctx).Debug("authentication failed", observability.Error(best))
	return nil, best
}

// failureRank orders failures from least to most specific. A wrong API
// key ranks below other invalid credentials because the key provider also
// claims opaque bearer values meant for the delegated provider.
func failureRank(method auth.Method, kind util.Kind) int {
	switch kind {
	case util.KindMissingCredential:
		return 0
	case util.KindInvalidCredential:
		if method == auth.MethodAPIKey {
			return 1
		}
		return 2
	case util.KindExpiredCredential:
		return 3
	default:
		return 4
	}
}
