package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// PinnedAlgorithm is the only algorithm accepted in shared-secret mode.
const PinnedAlgorithm = jwa.HS256

// Config configures the token provider. Exactly one of Secret and KeySet
// must be set.
type Config struct {
	Secret      []byte
	KeySet      *KeySet
	Issuer      string
	Audience    string
	Leeway      time.Duration
	UserIDClaim string
	ScopesClaim string
	Scopes      auth.ScopeMapper
}

// Provider verifies bearer JWTs.
type Provider struct {
	cfg    Config
	logger observability.Logger
	clock  func() time.Time
}

// Option is a functional option for the provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider.
func WithLogger(logger observability.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		p.clock = clock
	}
}

// NewProvider creates a token provider.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	switch {
	case len(cfg.Secret) == 0 && cfg.KeySet == nil:
		return nil, errors.New("jwt provider requires a secret or a key set")
	case len(cfg.Secret) > 0 && cfg.KeySet != nil:
		return nil, errors.New("jwt provider accepts a secret or a key set, not both")
	}
	if cfg.UserIDClaim == "" {
		cfg.UserIDClaim = jwxjwt.SubjectKey
	}
	if cfg.ScopesClaim == "" {
		cfg.ScopesClaim = "scope"
	}

	p := &Provider{
		cfg:    cfg,
		logger: observability.NopLogger(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// KeySet returns the remote key set, or nil in shared-secret mode.
func (p *Provider) KeySet() *KeySet {
	return p.cfg.KeySet
}

// Authenticate verifies a JWT-shaped bearer value.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Identity, error) {
	raw := creds.Bearer
	if raw == "" || !auth.LooksLikeJWT(raw) {
		return nil, util.ErrNotApplicable
	}

	alg, key, err := p.verificationKey(ctx, []byte(raw))
	if err != nil {
		p.logger.WithContext(ctx).Debug("token rejected before signature check", observability.Error(err))
		return nil, err
	}

	token, err := jwxjwt.Parse([]byte(raw), p.parseOptions(alg, key)...)
	if err != nil {
		p.logger.WithContext(ctx).Debug("token rejected", observability.Error(err))
		if errors.Is(err, jwxjwt.ErrTokenExpired()) {
			return nil, util.WrapError(util.KindExpiredCredential, "token expired", err)
		}
		return nil, util.WrapError(util.KindInvalidCredential, "token verification failed", err)
	}

	return p.identity(token)
}

// verificationKey resolves the algorithm and key used to verify raw. The
// declared algorithm is checked against the pinned algorithm or the key's
// published algorithm, never trusted on its own.
func (p *Provider) verificationKey(ctx context.Context, raw []byte) (jwa.SignatureAlgorithm, any, error) {
	msg, err := jws.Parse(raw)
	if err != nil {
		return "", nil, util.WrapError(util.KindInvalidCredential, "malformed token", err)
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", nil, util.NewError(util.KindInvalidCredential, "token must carry exactly one signature")
	}
	headers := sigs[0].ProtectedHeaders()
	declared := headers.Algorithm()

	if p.cfg.KeySet == nil {
		if declared != PinnedAlgorithm {
			return "", nil, util.NewError(util.KindInvalidCredential,
				fmt.Sprintf("algorithm %s not allowed", declared))
		}
		return PinnedAlgorithm, p.cfg.Secret, nil
	}

	kid := headers.KeyID()
	if kid == "" {
		return "", nil, util.NewError(util.KindInvalidCredential, "token has no key id")
	}
	if !p.cfg.KeySet.AllowsAlgorithm(declared.String()) {
		return "", nil, util.NewError(util.KindInvalidCredential,
			fmt.Sprintf("algorithm %s not allowed", declared))
	}

	key, err := p.cfg.KeySet.Key(ctx, kid)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", nil, util.WrapError(util.KindInvalidCredential, "unknown key id", err)
		}
		return "", nil, err
	}

	keyAlg := keyAlgorithm(key)
	if keyAlg != declared.String() {
		return "", nil, util.NewError(util.KindInvalidCredential,
			fmt.Sprintf("token algorithm %s does not match key algorithm %s", declared, keyAlg))
	}
	return jwa.SignatureAlgorithm(keyAlg), key, nil
}

func (p *Provider) parseOptions(alg jwa.SignatureAlgorithm, key any) []jwxjwt.ParseOption {
	opts := []jwxjwt.ParseOption{
		jwxjwt.WithKey(alg, key),
		jwxjwt.WithValidate(true),
		jwxjwt.WithClock(jwxjwt.ClockFunc(p.clock)),
		jwxjwt.WithAcceptableSkew(p.cfg.Leeway),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwxjwt.WithIssuer(p.cfg.Issuer))
	}
	if p.cfg.Audience != "" {
		opts = append(opts, jwxjwt.WithAudience(p.cfg.Audience))
	}
	return opts
}

func (p *Provider) identity(token jwxjwt.Token) (*auth.Identity, error) {
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return nil, util.WrapError(util.KindInvalidCredential, "read token claims", err)
	}

	userID, _ := claims[p.cfg.UserIDClaim].(string)
	if userID == "" {
		return nil, util.NewError(util.KindInvalidCredential,
			fmt.Sprintf("token has no %s claim", p.cfg.UserIDClaim))
	}

	scopes := auth.ParseScopes(claims[p.cfg.ScopesClaim])
	name, _ := claims["name"].(string)

	return auth.NewIdentity(userID, auth.MethodToken, auth.IdentityOptions{
		Name:    name,
		Allowed: p.cfg.Scopes.Capabilities(scopes),
		Scopes:  scopes,
		Claims:  token.PrivateClaims(),
	}), nil
}
