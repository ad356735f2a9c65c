package router

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transport is how the gateway talks to an upstream.
type Transport string

// Supported transports.
const (
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
	TransportStdio Transport = "stdio"
)

// Valid reports whether t is a supported transport.
func (t Transport) Valid() bool {
	switch t {
	case TransportHTTP, TransportSSE, TransportStdio:
		return true
	}
	return false
}

// Route maps a path prefix to an upstream.
type Route struct {
	Name        string
	PathPrefix  string
	Transport   Transport
	URL         string
	Command     string
	Args        []string
	StripPrefix bool
	Timeout     time.Duration
}

// Validate checks a single route.
func (r Route) Validate() error {
	if r.Name == "" {
		return errors.New("route name is required")
	}
	if !strings.HasPrefix(r.PathPrefix, "/") {
		return fmt.Errorf("route %s: path prefix %q must start with /", r.Name, r.PathPrefix)
	}
	if !r.Transport.Valid() {
		return fmt.Errorf("route %s: unsupported transport %q", r.Name, r.Transport)
	}
	switch r.Transport {
	case TransportStdio:
		if r.Command == "" {
			return fmt.Errorf("route %s: stdio transport requires a command", r.Name)
		}
	default:
		if r.URL == "" {
			return fmt.Errorf("route %s: %s transport requires a url", r.Name, r.Transport)
		}
	}
	if r.Timeout < 0 {
		return fmt.Errorf("route %s: timeout must not be negative", r.Name)
	}
	return nil
}

// matches reports whether prefix matches path on a segment boundary.
func matches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// strip removes prefix from path, keeping a leading slash.
func strip(prefix, path string) string {
	if prefix == "/" {
		return path
	}
	rest := strings.TrimPrefix(path, strings.TrimSuffix(prefix, "/"))
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest
}
