package gateway

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/auth/apikey"
	"github.com/vyrodovalexey/avamcp/internal/auth/jwt"
	"github.com/vyrodovalexey/avamcp/internal/auth/mtls"
	"github.com/vyrodovalexey/avamcp/internal/auth/oauth"
	"github.com/vyrodovalexey/avamcp/internal/auth/resolver"
	"github.com/vyrodovalexey/avamcp/internal/circuitbreaker"
	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/router"
)

// quota converts a configured override.
func quota(q *config.QuotaConfig) *auth.Quota {
	if q == nil {
		return nil
	}
	return &auth.Quota{RatePerSecond: q.RatePerSecond(), Burst: q.BurstOrRequests()}
}

// buildProviders creates the enabled identity providers and records the
// stateful ones on g so that their background tasks can be started.
func (g *Gateway) buildProviders() (resolver.Providers, error) {
	var providers resolver.Providers
	a := g.cfg.Auth

	if len(a.APIKeys) > 0 {
		entries := make([]apikey.Entry, 0, len(a.APIKeys))
		for _, k := range a.APIKeys {
			digest, err := apikey.ParseDigest(k.KeyHash)
			if err != nil {
				return providers, fmt.Errorf("api key %s: %w", k.ID, err)
			}
			entries = append(entries, apikey.Entry{
				ID:      k.ID,
				Name:    k.Name,
				Digest:  digest,
				Allowed: k.AllowedTools,
				Quota:   quota(k.RateLimit),
			})
		}
		store, err := apikey.NewStore(entries)
		if err != nil {
			return providers, err
		}
		providers.APIKey = apikey.NewProvider(store, apikey.WithLogger(g.logger))
	}

	if j := a.JWT; j != nil {
		cfg := jwt.Config{
			Issuer:      j.Issuer,
			Audience:    j.Audience,
			Leeway:      j.Leeway.Duration(),
			UserIDClaim: j.UserIDClaim,
			ScopesClaim: j.ScopesClaim,
			Scopes:      auth.ScopeMapper(j.ScopeMapping),
		}
		if j.Secret != "" {
			cfg.Secret = []byte(j.Secret)
		} else {
			g.keySet = jwt.NewKeySet(j.JWKSURL,
				jwt.WithCacheTTL(j.CacheTTL.Duration()),
				jwt.WithAllowedAlgorithms(j.AllowedAlgorithms...),
				jwt.WithKeySetLogger(g.logger),
			)
			cfg.KeySet = g.keySet
		}
		p, err := jwt.NewProvider(cfg, jwt.WithLogger(g.logger))
		if err != nil {
			return providers, fmt.Errorf("jwt provider: %w", err)
		}
		providers.Token = p
	}

	if o := a.OAuth; o != nil {
		store, err := g.buildStateStore(o)
		if err != nil {
			return providers, err
		}
		breaker := circuitbreaker.New("oauth:"+o.Provider, circuitbreaker.Config{
			MaxFailures:  g.cfg.CircuitBreaker.MaxFailures,
			Timeout:      g.cfg.CircuitBreaker.Timeout.Duration(),
			HalfOpenMax:  g.cfg.CircuitBreaker.HalfOpenMax,
			IsSuccessful: oauth.ProviderAnswered,
		}, circuitbreaker.WithLogger(g.logger), circuitbreaker.WithMetrics(g.metrics.breaker))

		p, err := oauth.NewProvider(oauth.Config{
			Provider:     o.Provider,
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURI:  o.RedirectURI,
			Scopes:       o.Scopes,
			Endpoints: oauth.Endpoints{
				AuthorizationURL: o.AuthorizationURL,
				TokenURL:         o.TokenURL,
				UserInfoURL:      o.UserInfoURL,
				IntrospectionURL: o.IntrospectionURL,
			},
			UserIDClaim: o.UserIDClaim,
			ScopeMapper: auth.ScopeMapper(o.ScopeMapping),
			CacheSize:   o.TokenCacheSize,
			CacheTTL:    o.TokenCacheTTL.Duration(),

			DeferJWTBearers: providers.Token != nil,
		}, store,
			oauth.WithLogger(g.logger),
			oauth.WithMetrics(g.metrics.auth),
			oauth.WithHTTPClient(&http.Client{Timeout: o.HTTPTimeout.Duration()}),
			oauth.WithBreaker(breaker),
		)
		if err != nil {
			return providers, fmt.Errorf("oauth provider: %w", err)
		}
		providers.Delegated = p
		g.oauth = p
	}

	if m := a.MTLS; m != nil {
		trusted, err := mtls.ParseTrustedProxies(m.TrustedProxies)
		if err != nil {
			return providers, fmt.Errorf("mtls trusted proxies: %w", err)
		}
		p, err := mtls.NewProvider(mtls.Config{
			TrustedProxies: trusted,
			IdentitySource: mtls.IdentitySource(m.IdentitySource),
			Allowed:        m.AllowedTools,
			Quota:          quota(m.RateLimit),
		}, mtls.WithLogger(g.logger))
		if err != nil {
			return providers, fmt.Errorf("mtls provider: %w", err)
		}
		providers.Certificate = p
	}

	if providers.Empty() {
		return providers, fmt.Errorf("no identity provider configured")
	}
	return providers, nil
}

func (g *Gateway) buildStateStore(o *config.OAuthConfig) (oauth.StateStore, error) {
	ttl := o.StateTTL.Duration()

	if o.StateStore.Type != config.StateStoreRedis {
		g.stateStore = oauth.NewMemoryStateStore(ttl, oauth.WithMemoryStoreLogger(g.logger))
		return g.stateStore, nil
	}

	rc := o.StateStore.Redis
	if rc == nil {
		return nil, fmt.Errorf("redis state store requires a redis section")
	}
	client := g.redisClient
	if client == nil {
		c := redis.NewClient(&redis.Options{
			Addr:     rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
		})
		g.closers = append(g.closers, c.Close)
		client = c
	}
	return oauth.NewRedisStateStore(client, rc.KeyPrefix, ttl), nil
}

// buildRoutes converts the configured route table.
func buildRoutes(routes []config.RouteConfig) []router.Route {
	out := make([]router.Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, router.Route{
			Name:        r.Name,
			PathPrefix:  r.PathPrefix,
			Transport:   router.Transport(r.Transport),
			URL:         r.URL,
			Command:     r.Command,
			Args:        r.Args,
			StripPrefix: r.StripPrefix,
			Timeout:     r.Timeout.Duration(),
		})
	}
	return out
}
