package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// RefPrefix marks a configuration value as a Vault reference.
const RefPrefix = "vault:"

// Client reads KV v2 secrets.
type Client struct {
	cfg    Config
	api    *vaultapi.Client
	logger observability.Logger

	mu    sync.Mutex
	cache map[string]map[string]interface{}
}

// Option is a functional option for the client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client. Login happens lazily on the first read.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address
	apiConfig.Timeout = cfg.timeout()
	apiConfig.MaxRetries = 1

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, &Error{Op: "init", Err: err}
	}
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}
	api.ClearToken()
	if cfg.authMethod() == AuthMethodToken {
		api.SetToken(cfg.Token)
	}

	c := &Client{
		cfg:    cfg,
		api:    api,
		logger: observability.NopLogger(),
		cache:  make(map[string]map[string]interface{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) login(ctx context.Context) error {
	if c.api.Token() != "" {
		return nil
	}

	path := "auth/" + c.cfg.appRoleMount() + "/login"
	secret, err := c.api.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"role_id":   c.cfg.RoleID,
		"secret_id": c.cfg.SecretID,
	})
	if err != nil {
		return &Error{Op: "login", Path: path, Err: err}
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return &Error{Op: "login", Path: path, Err: fmt.Errorf("no client token in response")}
	}
	c.api.SetToken(secret.Auth.ClientToken)
	c.logger.Debug("vault approle login succeeded")
	return nil
}

// Read returns the data of the latest version of a KV v2 secret.
func (c *Client) Read(ctx context.Context, mount, path string) (map[string]interface{}, error) {
	if mount == "" || path == "" {
		return nil, &Error{Op: "kv_read", Err: ErrInvalidRef}
	}
	fullPath := fmt.Sprintf("%s/data/%s", mount, strings.TrimPrefix(path, "/"))

	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.cache[fullPath]; ok {
		return data, nil
	}
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	secret, err := c.api.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, &Error{Op: "kv_read", Path: fullPath, Err: err}
	}
	if secret == nil || secret.Data == nil {
		return nil, &Error{Op: "kv_read", Path: fullPath, Err: ErrSecretNotFound}
	}

	// Deleted versions come back with "data": null.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, &Error{Op: "kv_read", Path: fullPath, Err: ErrSecretNotFound}
	}

	c.cache[fullPath] = data
	c.logger.Debug("secret read", observability.String("path", fullPath))
	return data, nil
}

// Ref is a parsed vault:<mount>/<path>#<key> reference.
type Ref struct {
	Mount string
	Path  string
	Key   string
}

// IsRef reports whether s is a Vault reference.
func IsRef(s string) bool {
	return strings.HasPrefix(s, RefPrefix)
}

// ParseRef parses a vault:<mount>/<path>#<key> reference.
func ParseRef(s string) (Ref, error) {
	if !IsRef(s) {
		return Ref{}, fmt.Errorf("%w: %q lacks the %s prefix", ErrInvalidRef, s, RefPrefix)
	}
	body := strings.TrimPrefix(s, RefPrefix)

	location, key, ok := strings.Cut(body, "#")
	if !ok || key == "" {
		return Ref{}, fmt.Errorf("%w: missing #key", ErrInvalidRef)
	}
	mount, path, ok := strings.Cut(strings.Trim(location, "/"), "/")
	if !ok || mount == "" || path == "" {
		return Ref{}, fmt.Errorf("%w: expected <mount>/<path>", ErrInvalidRef)
	}
	return Ref{Mount: mount, Path: path, Key: key}, nil
}

// Resolve returns the string value a reference points to.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	data, err := c.Read(ctx, r.Mount, r.Path)
	if err != nil {
		return "", err
	}

	value, ok := data[r.Key]
	if !ok {
		return "", &Error{Op: "resolve", Path: r.Mount + "/" + r.Path, Err: fmt.Errorf("%w: %s", ErrKeyNotFound, r.Key)}
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", &Error{Op: "resolve", Path: r.Mount + "/" + r.Path, Err: fmt.Errorf("%w: %s", ErrKeyNotFound, r.Key)}
	default:
		return fmt.Sprint(v), nil
	}
}
