package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// Listener serves the gateway handler on one TCP address.
type Listener struct {
	config  config.ServerConfig
	server  *http.Server
	handler http.Handler
	logger  observability.Logger
	addr    string
	running atomic.Bool
	done    chan struct{}
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a new listener.
func NewListener(cfg config.ServerConfig, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		config:  cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Addr returns the bound address once started, else the configured one.
func (l *Listener) Addr() string {
	if l.addr != "" {
		return l.addr
	}
	return l.config.Listen
}

// Start binds the address and serves in the background.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener %s is already running", l.config.Listen)
	}

	l.server = &http.Server{
		Handler:           l.handler,
		ReadTimeout:       l.config.ReadTimeout.Duration(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      l.config.WriteTimeout.Duration(),
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.config.Listen, err)
	}
	l.addr = ln.Addr().String()
	l.done = make(chan struct{})
	l.running.Store(true)

	l.logger.Info("listener started", observability.String("address", l.addr))

	go l.serve(ln)
	return nil
}

func (l *Listener) serve(ln net.Listener) {
	defer close(l.done)

	if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("listener error",
			observability.String("address", l.addr),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop shuts the server down gracefully, closing it if ctx expires first.
func (l *Listener) Stop(ctx context.Context) error {
	if l.server == nil {
		return nil
	}

	l.logger.Info("stopping listener", observability.String("address", l.addr))

	err := l.server.Shutdown(ctx)
	if err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		err = fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}
	<-l.done
	l.running.Store(false)

	if err == nil {
		l.logger.Info("listener stopped", observability.String("address", l.addr))
	}
	return err
}

// IsRunning returns true if the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
