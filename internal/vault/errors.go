package vault

import (
	"errors"
	"fmt"
)

// Errors returned by the client.
var (
	ErrSecretNotFound = errors.New("vault: secret not found")
	ErrKeyNotFound    = errors.New("vault: key not found in secret")
	ErrInvalidRef     = errors.New("vault: invalid secret reference")
	ErrInvalidConfig  = errors.New("vault: invalid configuration")
)

// Error describes a failed Vault operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vault %s on path %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
