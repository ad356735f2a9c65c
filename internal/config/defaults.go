package config

import "time"

// Default values applied by SetDefaults.
const (
	DefaultListen          = "127.0.0.1:3000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodySize     = 4 << 20

	DefaultRequestsPerSecond = 100
	DefaultBurst             = 50
	DefaultIdleTTL           = time.Hour
	DefaultSweepInterval     = 5 * time.Minute

	DefaultJWKSCacheTTL = time.Hour
	DefaultUserIDClaim  = "sub"
	DefaultScopesClaim  = "scope"

	DefaultStateTTL       = 10 * time.Minute
	DefaultTokenCacheSize = 500
	DefaultTokenCacheTTL  = 5 * time.Minute
	DefaultOAuthTimeout   = 10 * time.Second
	DefaultRedirectURI    = "http://localhost:3000/oauth/callback"

	DefaultBreakerMaxFailures = 5
	DefaultBreakerTimeout     = 30 * time.Second
	DefaultBreakerHalfOpenMax = 1

	DefaultAuditQueueSize       = 10000
	DefaultAuditBatchSize       = 100
	DefaultAuditFlushInterval   = 30 * time.Second
	DefaultAuditTimeout         = 10 * time.Second
	DefaultAuditShutdownTimeout = 5 * time.Second
	DefaultAuditMaxAttempts     = 3
)

// DefaultAllowedAlgorithms are the JWKS key algorithms accepted by default.
var DefaultAllowedAlgorithms = []string{"RS256", "ES256"}

// DefaultOAuthScopes are requested when none are configured.
var DefaultOAuthScopes = []string{"openid", "profile"}

// DefaultConfig returns a configuration with every default applied and no
// providers or routes.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.Server.setDefaults()
	c.Logging.setDefaults()
	c.Tracing.setDefaults()
	c.RateLimit.setDefaults()
	c.CircuitBreaker.setDefaults()
	c.Audit.setDefaults()

	if c.Auth.JWT != nil {
		c.Auth.JWT.setDefaults()
	}
	if c.Auth.OAuth != nil {
		c.Auth.OAuth.setDefaults()
	}
	if c.Auth.MTLS != nil && c.Auth.MTLS.IdentitySource == "" {
		c.Auth.MTLS.IdentitySource = "cn"
	}
}

func (s *ServerConfig) setDefaults() {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if s.MaxBodySize == 0 {
		s.MaxBodySize = DefaultMaxBodySize
	}
}

func (l *LoggingConfig) setDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.Output == "" {
		l.Output = "stdout"
	}
}

func (t *TracingConfig) setDefaults() {
	if t.ServiceName == "" {
		t.ServiceName = "avamcp"
	}
	if t.Enabled && t.SamplingRate == 0 {
		t.SamplingRate = 1
	}
}

func (r *RateLimitConfig) setDefaults() {
	if r.RequestsPerSecond == 0 {
		r.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if r.Burst == 0 {
		r.Burst = DefaultBurst
	}
	if r.IdleTTL == 0 {
		r.IdleTTL = Duration(DefaultIdleTTL)
	}
	if r.SweepInterval == 0 {
		r.SweepInterval = Duration(DefaultSweepInterval)
	}
}

func (b *CircuitBreakerConfig) setDefaults() {
	if b.MaxFailures == 0 {
		b.MaxFailures = DefaultBreakerMaxFailures
	}
	if b.Timeout == 0 {
		b.Timeout = Duration(DefaultBreakerTimeout)
	}
	if b.HalfOpenMax == 0 {
		b.HalfOpenMax = DefaultBreakerHalfOpenMax
	}
}

func (a *AuditConfig) setDefaults() {
	if a.QueueSize == 0 {
		a.QueueSize = DefaultAuditQueueSize
	}
	if a.BatchSize == 0 {
		a.BatchSize = DefaultAuditBatchSize
	}
	if a.FlushInterval == 0 {
		a.FlushInterval = Duration(DefaultAuditFlushInterval)
	}
	if a.Timeout == 0 {
		a.Timeout = Duration(DefaultAuditTimeout)
	}
	if a.ShutdownTimeout == 0 {
		a.ShutdownTimeout = Duration(DefaultAuditShutdownTimeout)
	}
	if a.MaxAttempts == 0 {
		a.MaxAttempts = DefaultAuditMaxAttempts
	}
}

func (j *JWTConfig) setDefaults() {
	if j.UserIDClaim == "" {
		j.UserIDClaim = DefaultUserIDClaim
	}
	if j.ScopesClaim == "" {
		j.ScopesClaim = DefaultScopesClaim
	}
	if j.JWKSURL != "" {
		if j.CacheTTL == 0 {
			j.CacheTTL = Duration(DefaultJWKSCacheTTL)
		}
		if len(j.AllowedAlgorithms) == 0 {
			j.AllowedAlgorithms = append([]string(nil), DefaultAllowedAlgorithms...)
		}
	}
}

func (o *OAuthConfig) setDefaults() {
	if o.RedirectURI == "" {
		o.RedirectURI = DefaultRedirectURI
	}
	if len(o.Scopes) == 0 {
		o.Scopes = append([]string(nil), DefaultOAuthScopes...)
	}
	if o.StateTTL == 0 {
		o.StateTTL = Duration(DefaultStateTTL)
	}
	if o.TokenCacheSize == 0 {
		o.TokenCacheSize = DefaultTokenCacheSize
	}
	if o.TokenCacheTTL == 0 {
		o.TokenCacheTTL = Duration(DefaultTokenCacheTTL)
	}
	if o.HTTPTimeout == 0 {
		o.HTTPTimeout = Duration(DefaultOAuthTimeout)
	}
	if o.StateStore.Type == "" {
		o.StateStore.Type = StateStoreMemory
	}
}
