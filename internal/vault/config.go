package vault

import (
	"fmt"
	"time"
)

// AuthMethod specifies how the client logs in.
type AuthMethod string

// Authentication methods.
const (
	AuthMethodToken   AuthMethod = "token"
	AuthMethodAppRole AuthMethod = "approle"
)

// DefaultTimeout bounds every Vault request.
const DefaultTimeout = 10 * time.Second

// Config configures the Vault client.
type Config struct {
	Address    string
	Namespace  string
	AuthMethod AuthMethod
	Token      string
	// RoleID and SecretID are used with AuthMethodAppRole.
	RoleID       string
	SecretID     string
	AppRoleMount string
	Timeout      time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	switch c.authMethod() {
	case AuthMethodToken:
		if c.Token == "" {
			return fmt.Errorf("%w: token is required for token auth", ErrInvalidConfig)
		}
	case AuthMethodAppRole:
		if c.RoleID == "" || c.SecretID == "" {
			return fmt.Errorf("%w: role id and secret id are required for approle auth", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown auth method %q", ErrInvalidConfig, c.AuthMethod)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) authMethod() AuthMethod {
	if c.AuthMethod == "" {
		return AuthMethodToken
	}
	return c.AuthMethod
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) appRoleMount() string {
	if c.AppRoleMount == "" {
		return "approle"
	}
	return c.AppRoleMount
}
