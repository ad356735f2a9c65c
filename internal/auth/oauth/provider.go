package oauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/circuitbreaker"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

const tokenCacheName = "oauth_token"

// Config configures the delegated-flow provider.
type Config struct {
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoints    Endpoints
	UserIDClaim  string
	ScopeMapper  auth.ScopeMapper
	CacheSize    int
	CacheTTL     time.Duration

	// DeferJWTBearers leaves JWT-shaped bearers to the token provider
	// unless the verification cache already holds them.
	DeferJWTBearers bool
}

// Session is the result of a completed flow.
type Session struct {
	Token    *TokenResponse
	Identity *auth.Identity
	ReturnTo string
}

// Provider runs the authorization-code flow and validates the access
// tokens it produces.
type Provider struct {
	cfg        Config
	client     *Client
	store      StateStore
	cache      *TokenCache
	logger     observability.Logger
	metrics    *auth.Metrics
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	now        func() time.Time
}

// Option is a functional option for the provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider.
func WithLogger(logger observability.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics used for token cache hits and misses.
func WithMetrics(metrics *auth.Metrics) Option {
	return func(p *Provider) {
		p.metrics = metrics
	}
}

// WithHTTPClient sets the HTTP client used for identity provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithBreaker sets the circuit breaker guarding identity provider calls.
func WithBreaker(breaker *circuitbreaker.Breaker) Option {
	return func(p *Provider) {
		p.breaker = breaker
	}
}

// NewProvider creates a delegated-flow provider. Endpoints left empty are
// taken from the well-known provider named by cfg.Provider.
func NewProvider(cfg Config, store StateStore, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth provider requires a client id")
	}
	if store == nil {
		return nil, errors.New("oauth provider requires a state store")
	}
	cfg.Endpoints = ResolveEndpoints(cfg.Provider, cfg.Endpoints)
	switch {
	case cfg.Endpoints.AuthorizationURL == "":
		return nil, errors.New("oauth provider requires an authorization url")
	case cfg.Endpoints.TokenURL == "":
		return nil, errors.New("oauth provider requires a token url")
	case cfg.Endpoints.UserInfoURL == "" && cfg.Endpoints.IntrospectionURL == "":
		return nil, errors.New("oauth provider requires a userinfo or introspection url")
	}

	p := &Provider{
		cfg:    cfg,
		store:  store,
		cache:  NewTokenCache(cfg.CacheSize, cfg.CacheTTL),
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.client = NewClient(ClientConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoints:    cfg.Endpoints,
		UserIDClaim:  cfg.UserIDClaim,
	}, p.httpClient, p.breaker)
	return p, nil
}

// Initiate starts a flow for the caller at clientIP and returns the
// identity provider URL to redirect to.
func (p *Provider) Initiate(ctx context.Context, clientIP, returnTo string) (string, error) {
	verifier, err := NewVerifier()
	if err != nil {
		return "", util.WrapError(util.KindInternal, "generate verifier", err)
	}
	state, err := NewState()
	if err != nil {
		return "", util.WrapError(util.KindInternal, "generate state", err)
	}

	fs := FlowState{
		Verifier:  verifier,
		CreatedAt: p.now(),
		ClientIP:  clientIP,
		ReturnTo:  returnTo,
	}
	if err := p.store.Put(ctx, state, fs); err != nil {
		return "", util.WrapError(util.KindInternal, "store flow state", err)
	}

	p.logger.WithContext(ctx).Debug("authorization flow initiated",
		observability.String("client_ip", clientIP))
	return p.client.AuthorizationURL(state, Challenge(verifier)), nil
}

// Complete finishes the flow started with state. The state is consumed
// whether or not completion succeeds.
func (p *Provider) Complete(ctx context.Context, code, state, clientIP string) (*Session, error) {
	if code == "" || state == "" {
		return nil, util.NewError(util.KindInvalidOrExpiredFlowState, "missing code or state")
	}

	fs, ok, err := p.store.Take(ctx, state)
	if err != nil {
		return nil, util.WrapError(util.KindInternal, "load flow state", err)
	}
	if !ok {
		return nil, util.NewError(util.KindInvalidOrExpiredFlowState, "unknown or expired state")
	}
	if fs.ClientIP != clientIP {
		p.logger.WithContext(ctx).Warn("flow completed from a different address",
			observability.String("client_ip", clientIP))
		return nil, util.NewError(util.KindInvalidOrExpiredFlowState, "state bound to another address")
	}

	tok, err := p.client.Exchange(ctx, code, fs.Verifier)
	if err != nil {
		return nil, err
	}

	identity, err := p.validate(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).Info("authorization flow completed",
		observability.String("identity", identity.ID()))
	return &Session{Token: tok, Identity: identity, ReturnTo: fs.ReturnTo}, nil
}

// Authenticate validates a bearer access token issued by the identity
// provider.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Identity, error) {
	if creds.Bearer == "" {
		return nil, util.ErrNotApplicable
	}
	if p.cfg.DeferJWTBearers && auth.LooksLikeJWT(creds.Bearer) {
		if _, ok := p.cache.Get(creds.Bearer); !ok {
			return nil, util.ErrNotApplicable
		}
	}
	return p.validate(ctx, creds.Bearer)
}

// Name returns the configured identity provider name.
func (p *Provider) Name() string {
	return p.cfg.Provider
}

// TokenCache returns the provider's verification cache.
func (p *Provider) TokenCache() *TokenCache {
	return p.cache
}

func (p *Provider) validate(ctx context.Context, token string) (*auth.Identity, error) {
	info, ok := p.cache.Get(token)
	if ok {
		p.metrics.RecordCacheHit(tokenCacheName)
	} else {
		p.metrics.RecordCacheMiss(tokenCacheName)

		var err error
		if p.cfg.Endpoints.IntrospectionURL != "" {
			info, err = p.client.Introspect(ctx, token)
		} else {
			info, err = p.client.UserInfo(ctx, token)
		}
		if err != nil {
			p.logger.WithContext(ctx).Debug("access token validation failed", observability.Error(err))
			return nil, err
		}
		p.cache.Put(token, info)
	}

	if !info.Active {
		return nil, util.NewError(util.KindExpiredCredential, "token inactive")
	}
	if info.ExpiresAt > 0 && p.now().Unix() > info.ExpiresAt {
		return nil, util.NewError(util.KindExpiredCredential, "token expired")
	}
	if info.UserID == "" {
		return nil, util.NewError(util.KindInvalidCredential, "token has no user id")
	}

	return auth.NewIdentity(info.UserID, auth.MethodDelegated, auth.IdentityOptions{
		Name:    info.Name,
		Allowed: p.cfg.ScopeMapper.Capabilities(info.Scopes),
		Scopes:  info.Scopes,
		Claims:  info.Claims,
	}), nil
}
