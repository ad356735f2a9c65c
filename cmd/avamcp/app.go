package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/gateway"
	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// application owns the running gateway and swaps it on reload.
type application struct {
	mu      sync.Mutex
	gateway *gateway.Gateway
	config  *config.Config

	logger        observability.Logger
	tracer        *observability.Tracer
	reloadMetrics *reloadMetrics
}

// newApplication builds the first gateway from cfg.
func newApplication(
	cfg *config.Config,
	logger observability.Logger,
	tracer *observability.Tracer,
) (*application, error) {
	app := &application{
		config:        cfg,
		logger:        logger,
		tracer:        tracer,
		reloadMetrics: newReloadMetrics(gateway.MetricsNamespace),
	}

	gw, err := app.newGateway(cfg)
	if err != nil {
		return nil, err
	}
	app.gateway = gw
	return app, nil
}

func (app *application) newGateway(cfg *config.Config) (*gateway.Gateway, error) {
	gw, err := gateway.New(cfg,
		gateway.WithLogger(app.logger),
		gateway.WithTracer(app.tracer),
		gateway.WithVersion(version),
		gateway.WithGatherer(app.reloadMetrics.registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return gw, nil
}

// start starts the current gateway.
func (app *application) start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.gateway.Start(ctx)
}

// current returns the gateway serving traffic.
func (app *application) current() *gateway.Gateway {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.gateway
}

// shutdown stops the gateway and flushes the tracer.
func (app *application) shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	var firstErr error
	if app.gateway.IsRunning() {
		if err := app.gateway.Stop(ctx); err != nil {
			app.logger.Error("failed to stop gateway gracefully", observability.Error(err))
			firstErr = err
		}
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Error("failed to shutdown tracer", observability.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
