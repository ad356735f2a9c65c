package gateway

import "errors"

// Sentinel errors for gateway lifecycle operations.
var (
	// ErrGatewayNotStopped indicates Start was called on a gateway that is
	// not stopped.
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")

	// ErrGatewayNotRunning indicates Stop was called on a gateway that is
	// not running.
	ErrGatewayNotRunning = errors.New("gateway is not running")

	// ErrNilConfig indicates that a nil configuration was provided.
	ErrNilConfig = errors.New("configuration is required")
)
