package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Route transports accepted in configuration.
const (
	TransportHTTP  = "http"
	TransportSSE   = "sse"
	TransportStdio = "stdio"
)

// validator accumulates configuration errors.
type validator struct {
	errs []error
}

func (v *validator) add(field, format string, args ...interface{}) {
	v.errs = append(v.errs, util.NewConfigError(field, fmt.Sprintf(format, args...)))
}

func (v *validator) addErr(field string, err error) {
	v.errs = append(v.errs, util.NewConfigErrorWithCause(field, err.Error(), err))
}

// Validate checks the configuration and returns every problem found,
// joined. Each one matches *util.ConfigError.
func (c *Config) Validate() error {
	v := &validator{}

	v.validateLogging(c.Logging)
	v.validateAuth(c.Auth)
	v.validateRateLimit(c.RateLimit)
	v.validateRoutes(c.Routes, c.DefaultRoute)
	v.validateAudit(c.Audit)

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		v.add("tracing.sampling_rate", "must be between 0 and 1")
	}
	if c.CircuitBreaker.MaxFailures < 0 || c.CircuitBreaker.HalfOpenMax < 0 || c.CircuitBreaker.Timeout < 0 {
		v.add("circuit_breaker", "values must not be negative")
	}
	if c.Vault != nil && c.Vault.Address == "" {
		v.add("vault.address", "is required when vault is configured")
	}

	return errors.Join(v.errs...)
}

func (v *validator) validateLogging(l LoggingConfig) {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		v.add("logging.level", "unknown level %q", l.Level)
	}
	switch l.Format {
	case "", "json", "console":
	default:
		v.add("logging.format", "unknown format %q", l.Format)
	}
}

func (v *validator) validateAuth(a AuthConfig) {
	if !a.Enabled() {
		v.add("auth", "at least one provider must be configured")
		return
	}

	seen := make(map[string]struct{}, len(a.APIKeys))
	for i, key := range a.APIKeys {
		field := fmt.Sprintf("auth.api_keys[%d]", i)
		if key.ID == "" {
			v.add(field+".id", "is required")
		} else if _, dup := seen[key.ID]; dup {
			v.add(field+".id", "duplicate identity id %q", key.ID)
		}
		seen[key.ID] = struct{}{}
		if strings.TrimSpace(key.KeyHash) == "" {
			v.add(field+".key_hash", "is required")
		}
		v.validateQuota(field+".rate_limit", key.RateLimit)
	}

	if j := a.JWT; j != nil {
		switch {
		case j.Secret == "" && j.JWKSURL == "":
			v.add("auth.jwt", "either secret or jwks_url is required")
		case j.Secret != "" && j.JWKSURL != "":
			v.add("auth.jwt", "secret and jwks_url are mutually exclusive")
		case j.JWKSURL != "":
			if err := util.ValidateURL(j.JWKSURL); err != nil {
				v.addErr("auth.jwt.jwks_url", err)
			}
		}
		if j.Leeway < 0 {
			v.add("auth.jwt.leeway", "must not be negative")
		}
	}

	if o := a.OAuth; o != nil {
		if o.ClientID == "" {
			v.add("auth.oauth.client_id", "is required")
		}
		if o.Provider == "" && (o.AuthorizationURL == "" || o.TokenURL == "") {
			v.add("auth.oauth", "provider or explicit authorization_url and token_url are required")
		}
		switch o.StateStore.Type {
		case "", StateStoreMemory:
		case StateStoreRedis:
			if o.StateStore.Redis == nil || o.StateStore.Redis.Address == "" {
				v.add("auth.oauth.state_store.redis.address", "is required for the redis store")
			}
		default:
			v.add("auth.oauth.state_store.type", "unknown store %q", o.StateStore.Type)
		}
		if o.TokenCacheSize < 0 {
			v.add("auth.oauth.token_cache_size", "must not be negative")
		}
	}

	if m := a.MTLS; m != nil {
		switch m.IdentitySource {
		case "", "cn", "san_dns", "san_email":
		default:
			v.add("auth.mtls.identity_source", "unknown source %q", m.IdentitySource)
		}
		if len(m.TrustedProxies) == 0 {
			v.add("auth.mtls.trusted_proxies", "at least one trusted proxy is required")
		}
		v.validateQuota("auth.mtls.rate_limit", m.RateLimit)
	}
}

func (v *validator) validateQuota(field string, q *QuotaConfig) {
	if q == nil {
		return
	}
	if q.Requests < 1 {
		v.add(field+".requests", "must be at least 1")
	}
	if q.Period < 0 || q.Burst < 0 {
		v.add(field, "values must not be negative")
	}
}

func (v *validator) validateRateLimit(r RateLimitConfig) {
	if r.RequestsPerSecond < 0 {
		v.add("rate_limit.requests_per_second", "must not be negative")
	}
	if r.Burst < 0 {
		v.add("rate_limit.burst", "must not be negative")
	}
	if r.IdleTTL < 0 || r.SweepInterval < 0 {
		v.add("rate_limit", "durations must not be negative")
	}
}

func (v *validator) validateRoutes(routes []RouteConfig, defaultRoute string) {
	if len(routes) == 0 {
		v.add("routes", "at least one route is required")
	}

	names := make(map[string]struct{}, len(routes))
	for i, r := range routes {
		field := fmt.Sprintf("routes[%d]", i)
		if r.Name == "" {
			v.add(field+".name", "is required")
		} else if _, dup := names[r.Name]; dup {
			v.add(field+".name", "duplicate route name %q", r.Name)
		}
		names[r.Name] = struct{}{}

		if !strings.HasPrefix(r.PathPrefix, "/") {
			v.add(field+".path_prefix", "must start with /")
		}

		switch r.Transport {
		case TransportHTTP, TransportSSE:
			if err := util.ValidateURL(r.URL); err != nil {
				v.addErr(field+".url", err)
			}
		case TransportStdio:
			if r.Command == "" {
				v.add(field+".command", "is required for the stdio transport")
			}
		case "":
			v.add(field+".transport", "is required")
		default:
			v.add(field+".transport", "unknown transport %q", r.Transport)
		}

		if r.Timeout < 0 {
			v.add(field+".timeout", "must not be negative")
		}
	}

	if defaultRoute != "" {
		if _, ok := names[defaultRoute]; !ok {
			v.add("default_route", "unknown route %q", defaultRoute)
		}
	}
}

func (v *validator) validateAudit(a AuditConfig) {
	if a.CollectorURL != "" {
		if err := util.ValidateURL(a.CollectorURL); err != nil {
			v.addErr("audit.collector_url", err)
		}
		if a.BatchSize < 1 {
			v.add("audit.batch_size", "must be at least 1")
		}
	}
	for name := range a.Headers {
		if err := util.ValidateHeaderName(name); err != nil {
			v.addErr("audit.headers", err)
		}
	}
	if a.QueueSize < 0 || a.FlushInterval < 0 || a.Timeout < 0 || a.MaxAttempts < 0 {
		v.add("audit", "values must not be negative")
	}
}
