// Package util provides the gateway's shared error taxonomy and small helpers.
//
// # Error Conventions
//
//   - Sentinel errors (errors.New or *Error values with only a Kind) for
//     stable conditions that callers check with errors.Is().
//   - *Error for request-path failures. Its Kind selects the caller-facing
//     status and message; Message and Cause stay internal.
//   - *ConfigError for configuration problems.
//   - fmt.Errorf with %w for ad-hoc wrapping.
package util

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a request-path failure.
type Kind int

// Failure kinds. KindNotApplicable is internal to the identity resolver:
// a provider returns it when its credential shape is absent.
const (
	KindNotApplicable Kind = iota
	KindMissingCredential
	KindInvalidCredential
	KindExpiredCredential
	KindUpstreamIdentityProviderUnavailable
	KindInvalidOrExpiredFlowState
	KindAuthorizationDenied
	KindRateLimitExceeded
	KindRouteNotFound
	KindUpstreamUnavailable
	KindAuditDeliveryFailed
	KindInternal
)

var kindCodes = map[Kind]string{
	KindNotApplicable:                       "not_applicable",
	KindMissingCredential:                   "missing_credential",
	KindInvalidCredential:                   "invalid_credential",
	KindExpiredCredential:                   "expired_credential",
	KindUpstreamIdentityProviderUnavailable: "identity_provider_unavailable",
	KindInvalidOrExpiredFlowState:           "invalid_or_expired_state",
	KindAuthorizationDenied:                 "authorization_denied",
	KindRateLimitExceeded:                   "rate_limit_exceeded",
	KindRouteNotFound:                       "route_not_found",
	KindUpstreamUnavailable:                 "upstream_unavailable",
	KindAuditDeliveryFailed:                 "audit_delivery_failed",
	KindInternal:                            "internal_error",
}

var publicMessages = map[Kind]string{
	KindNotApplicable:                       "Authentication required",
	KindMissingCredential:                   "Authentication required",
	KindInvalidCredential:                   "Invalid credentials",
	KindExpiredCredential:                   "Credentials expired",
	KindUpstreamIdentityProviderUnavailable: "Identity provider unavailable",
	KindInvalidOrExpiredFlowState:           "Invalid or expired authorization state",
	KindAuthorizationDenied:                 "Access denied",
	KindRateLimitExceeded:                   "Rate limit exceeded",
	KindRouteNotFound:                       "No upstream for this path",
	KindUpstreamUnavailable:                 "Upstream unavailable",
	KindAuditDeliveryFailed:                 "Internal error",
	KindInternal:                            "Internal error",
}

// String returns the stable machine-readable code of the kind.
func (k Kind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return "unknown"
}

// PublicMessage returns the sanitized message shown to callers.
func (k Kind) PublicMessage() string {
	if msg, ok := publicMessages[k]; ok {
		return msg
	}
	return publicMessages[KindInternal]
}

// HTTPStatus maps the kind to the status returned to callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotApplicable, KindMissingCredential, KindInvalidCredential,
		KindExpiredCredential, KindInvalidOrExpiredFlowState:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindUpstreamIdentityProviderUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified request-path failure.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is checks by kind.
var (
	ErrNotApplicable        = &Error{Kind: KindNotApplicable}
	ErrMissingCredential    = &Error{Kind: KindMissingCredential}
	ErrInvalidCredential    = &Error{Kind: KindInvalidCredential}
	ErrExpiredCredential    = &Error{Kind: KindExpiredCredential}
	ErrProviderUnavailable  = &Error{Kind: KindUpstreamIdentityProviderUnavailable}
	ErrInvalidFlowState     = &Error{Kind: KindInvalidOrExpiredFlowState}
	ErrAuthorizationDenied  = &Error{Kind: KindAuthorizationDenied}
	ErrRateLimitExceeded    = &Error{Kind: KindRateLimitExceeded}
	ErrRouteNotFound        = &Error{Kind: KindRouteNotFound}
	ErrUpstreamUnavailable  = &Error{Kind: KindUpstreamUnavailable}
	ErrAuditDeliveryFailed  = &Error{Kind: KindAuditDeliveryFailed}
	ErrInternal             = &Error{Kind: KindInternal}
	ErrCircuitOpen          = errors.New("circuit breaker open")
	ErrResponseBodyTooLarge = errors.New("response body too large")
)

// NewError creates an *Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an *Error of the given kind wrapping cause.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewRateLimitError creates a rate-limit failure carrying the retry hint.
func NewRateLimitError(identityID string, retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimitExceeded,
		Message:    fmt.Sprintf("identity %q over quota", identityID),
		RetryAfter: retryAfter,
	}
}

// NewRouteNotFoundError creates a route lookup failure.
func NewRouteNotFoundError(path string) *Error {
	return &Error{Kind: KindRouteNotFound, Message: fmt.Sprintf("no route for path %s", path)}
}

// KindOf returns the kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RetryAfterOf returns the retry hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}
