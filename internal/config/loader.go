package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avamcp/internal/vault"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// secretResolveTimeout bounds secret resolution during one load.
const secretResolveTimeout = 30 * time.Second

// SecretResolver resolves vault: references.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Loader reads configuration files.
type Loader struct {
	resolver SecretResolver
}

// LoaderOption is a functional option for the loader.
type LoaderOption func(*Loader)

// WithSecretResolver overrides the resolver built from the vault section.
func WithSecretResolver(r SecretResolver) LoaderOption {
	return func(l *Loader) {
		l.resolver = r
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig loads, resolves and validates the file at path.
func LoadConfig(path string, opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).Load(path)
}

// LoadConfigFromReader loads, resolves and validates configuration from r.
func LoadConfigFromReader(r io.Reader, opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).LoadFromReader(r)
}

// Load loads configuration from a file path.
func (l *Loader) Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parse(data)
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parse(data)
}

func (l *Loader) parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.SetDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), secretResolveTimeout)
	defer cancel()
	if err := l.resolveSecrets(ctx, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} with environment
// values. $$ is a literal $.
func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// resolveSecrets replaces every vault: string in cfg. The vault section
// itself is never resolved.
func (l *Loader) resolveSecrets(ctx context.Context, cfg *Config) error {
	refs := 0
	walkStrings(reflect.ValueOf(cfg).Elem(), func(s string) string {
		if vault.IsRef(s) {
			refs++
		}
		return s
	})
	if refs == 0 {
		return nil
	}

	resolver := l.resolver
	if resolver == nil {
		if cfg.Vault == nil {
			return fmt.Errorf("config contains %d vault references but no vault section", refs)
		}
		client, err := vault.New(vault.Config{
			Address:    cfg.Vault.Address,
			Namespace:  cfg.Vault.Namespace,
			AuthMethod: vault.AuthMethod(cfg.Vault.AuthMethod),
			Token:      cfg.Vault.Token,
			RoleID:     cfg.Vault.RoleID,
			SecretID:   cfg.Vault.SecretID,
			Timeout:    cfg.Vault.Timeout.Duration(),
		})
		if err != nil {
			return fmt.Errorf("failed to create vault client: %w", err)
		}
		resolver = client
	}

	var firstErr error
	walkStrings(reflect.ValueOf(cfg).Elem(), func(s string) string {
		if firstErr != nil || !vault.IsRef(s) {
			return s
		}
		resolved, err := resolver.Resolve(ctx, s)
		if err != nil {
			firstErr = fmt.Errorf("failed to resolve secret reference: %w", err)
			return s
		}
		return resolved
	})
	return firstErr
}

var vaultConfigType = reflect.TypeOf(VaultConfig{})

// walkStrings calls fn for every settable string reachable from v and
// stores the result.
func walkStrings(v reflect.Value, fn func(string) string) {
	switch v.Kind() {
	case reflect.Ptr:
		if !v.IsNil() {
			walkStrings(v.Elem(), fn)
		}
	case reflect.Struct:
		if v.Type() == vaultConfigType {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				walkStrings(v.Field(i), fn)
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			walkStrings(v.Index(i), fn)
		}
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.String {
			return
		}
		for _, key := range v.MapKeys() {
			v.SetMapIndex(key, reflect.ValueOf(fn(v.MapIndex(key).String())).Convert(v.Type().Elem()))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(fn(v.String()))
		}
	}
}
