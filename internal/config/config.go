package config

import "time"

// Config is the complete gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server" json:"server"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
	Tracing        TracingConfig        `yaml:"tracing" json:"tracing"`
	Vault          *VaultConfig         `yaml:"vault,omitempty" json:"vault,omitempty"`
	Auth           AuthConfig           `yaml:"auth" json:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" json:"rate_limit"`
	Routes         []RouteConfig        `yaml:"routes" json:"routes"`
	DefaultRoute   string               `yaml:"default_route,omitempty" json:"default_route,omitempty"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
	Audit          AuditConfig          `yaml:"audit" json:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string   `yaml:"listen" json:"listen"`
	ReadTimeout     Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodySize     int64    `yaml:"max_body_size" json:"max_body_size"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
	ServiceName  string  `yaml:"service_name" json:"service_name"`
}

// VaultConfig configures secret resolution. Without it, vault: values are
// rejected.
type VaultConfig struct {
	Address    string   `yaml:"address" json:"address"`
	Namespace  string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	AuthMethod string   `yaml:"auth_method,omitempty" json:"auth_method,omitempty"`
	Token      string   `yaml:"token,omitempty" json:"-"`
	RoleID     string   `yaml:"role_id,omitempty" json:"role_id,omitempty"`
	SecretID   string   `yaml:"secret_id,omitempty" json:"-"`
	Timeout    Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// AuthConfig enables the identity providers. A nil section is disabled.
type AuthConfig struct {
	APIKeys []APIKeyConfig `yaml:"api_keys,omitempty" json:"api_keys,omitempty"`
	JWT     *JWTConfig     `yaml:"jwt,omitempty" json:"jwt,omitempty"`
	OAuth   *OAuthConfig   `yaml:"oauth,omitempty" json:"oauth,omitempty"`
	MTLS    *MTLSConfig    `yaml:"mtls,omitempty" json:"mtls,omitempty"`
}

// Enabled reports whether any provider is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWT != nil || a.OAuth != nil || a.MTLS != nil
}

// QuotaConfig is a per-identity rate override: Requests per Period with
// the given Burst.
type QuotaConfig struct {
	Requests int      `yaml:"requests" json:"requests"`
	Period   Duration `yaml:"period,omitempty" json:"period,omitempty"`
	Burst    int      `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// RatePerSecond returns the refill rate. A zero period means one second.
func (q QuotaConfig) RatePerSecond() float64 {
	period := q.Period.Duration()
	if period <= 0 {
		period = time.Second
	}
	return float64(q.Requests) / period.Seconds()
}

// BurstOrRequests returns the burst, defaulting to Requests.
func (q QuotaConfig) BurstOrRequests() int {
	if q.Burst > 0 {
		return q.Burst
	}
	return q.Requests
}

// APIKeyConfig registers one key by its SHA-256 digest.
type APIKeyConfig struct {
	ID           string       `yaml:"id" json:"id"`
	Name         string       `yaml:"name,omitempty" json:"name,omitempty"`
	KeyHash      string       `yaml:"key_hash" json:"-"`
	AllowedTools []string     `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
	RateLimit    *QuotaConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// JWTConfig configures the token provider. Exactly one of Secret and
// JWKSURL is set.
type JWTConfig struct {
	Secret            string              `yaml:"secret,omitempty" json:"-"`
	JWKSURL           string              `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`
	Issuer            string              `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Audience          string              `yaml:"audience,omitempty" json:"audience,omitempty"`
	Leeway            Duration            `yaml:"leeway,omitempty" json:"leeway,omitempty"`
	UserIDClaim       string              `yaml:"user_id_claim,omitempty" json:"user_id_claim,omitempty"`
	ScopesClaim       string              `yaml:"scopes_claim,omitempty" json:"scopes_claim,omitempty"`
	AllowedAlgorithms []string            `yaml:"allowed_algorithms,omitempty" json:"allowed_algorithms,omitempty"`
	CacheTTL          Duration            `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
	ScopeMapping      map[string][]string `yaml:"scope_mapping,omitempty" json:"scope_mapping,omitempty"`
}

// OAuthConfig configures the delegated authorization-code flow.
type OAuthConfig struct {
	Provider         string              `yaml:"provider" json:"provider"`
	ClientID         string              `yaml:"client_id" json:"client_id"`
	ClientSecret     string              `yaml:"client_secret,omitempty" json:"-"`
	RedirectURI      string              `yaml:"redirect_uri,omitempty" json:"redirect_uri,omitempty"`
	Scopes           []string            `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	AuthorizationURL string              `yaml:"authorization_url,omitempty" json:"authorization_url,omitempty"`
	TokenURL         string              `yaml:"token_url,omitempty" json:"token_url,omitempty"`
	UserInfoURL      string              `yaml:"userinfo_url,omitempty" json:"userinfo_url,omitempty"`
	IntrospectionURL string              `yaml:"introspection_url,omitempty" json:"introspection_url,omitempty"`
	UserIDClaim      string              `yaml:"user_id_claim,omitempty" json:"user_id_claim,omitempty"`
	ScopeMapping     map[string][]string `yaml:"scope_mapping,omitempty" json:"scope_mapping,omitempty"`
	StateTTL         Duration            `yaml:"state_ttl,omitempty" json:"state_ttl,omitempty"`
	TokenCacheSize   int                 `yaml:"token_cache_size,omitempty" json:"token_cache_size,omitempty"`
	TokenCacheTTL    Duration            `yaml:"token_cache_ttl,omitempty" json:"token_cache_ttl,omitempty"`
	HTTPTimeout      Duration            `yaml:"http_timeout,omitempty" json:"http_timeout,omitempty"`
	StateStore       StateStoreConfig    `yaml:"state_store" json:"state_store"`
}

// State store types.
const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

// StateStoreConfig selects where pending flow states live.
type StateStoreConfig struct {
	Type  string       `yaml:"type" json:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the Redis client for shared flow state.
type RedisConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password,omitempty" json:"-"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
}

// MTLSConfig configures the certificate-header provider.
type MTLSConfig struct {
	TrustedProxies []string     `yaml:"trusted_proxies" json:"trusted_proxies"`
	IdentitySource string       `yaml:"identity_source,omitempty" json:"identity_source,omitempty"`
	AllowedTools   []string     `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
	RateLimit      *QuotaConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// RateLimitConfig is the global per-identity budget.
type RateLimitConfig struct {
	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int      `yaml:"burst" json:"burst"`
	IdleTTL           Duration `yaml:"idle_ttl" json:"idle_ttl"`
	SweepInterval     Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// RouteConfig maps a path prefix to an upstream MCP server.
type RouteConfig struct {
	Name        string   `yaml:"name" json:"name"`
	PathPrefix  string   `yaml:"path_prefix" json:"path_prefix"`
	Transport   string   `yaml:"transport" json:"transport"`
	URL         string   `yaml:"url,omitempty" json:"url,omitempty"`
	Command     string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args        []string `yaml:"args,omitempty" json:"args,omitempty"`
	StripPrefix bool     `yaml:"strip_prefix,omitempty" json:"strip_prefix,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// CircuitBreakerConfig configures the per-route upstream breakers.
type CircuitBreakerConfig struct {
	MaxFailures int      `yaml:"max_failures" json:"max_failures"`
	Timeout     Duration `yaml:"timeout" json:"timeout"`
	HalfOpenMax int      `yaml:"half_open_max" json:"half_open_max"`
}

// AuditConfig configures the audit pipeline. Without a collector URL
// entries are only logged, when LogToLogger is set.
type AuditConfig struct {
	CollectorURL    string            `yaml:"collector_url,omitempty" json:"collector_url,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty" json:"-"`
	QueueSize       int               `yaml:"queue_size" json:"queue_size"`
	BatchSize       int               `yaml:"batch_size" json:"batch_size"`
	FlushInterval   Duration          `yaml:"flush_interval" json:"flush_interval"`
	Timeout         Duration          `yaml:"timeout" json:"timeout"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxAttempts     int               `yaml:"max_attempts" json:"max_attempts"`
	LogToLogger     bool              `yaml:"log_to_logger" json:"log_to_logger"`
}
