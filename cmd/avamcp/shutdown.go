package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// run loads the configuration, starts the gateway and blocks until SIGINT
// or SIGTERM.
func run(ctx context.Context, flags cliFlags, bootstrap observability.Logger) error {
	bootstrap.Info("starting avamcp",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(logConfig(cfg.Logging, flags))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tracer, err := observability.NewTracer(ctx, tracerConfig(cfg.Tracing))
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	app, err := newApplication(cfg, logger, tracer)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(sigCtx, app, flags.configPath)
}

// serve runs app until ctx is done, then shuts it down within the
// configured shutdown timeout.
func serve(ctx context.Context, app *application, configPath string) error {
	if err := app.start(ctx); err != nil {
		_ = app.current().Discard()
		_ = app.tracer.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	watcher := startConfigWatcher(ctx, app, configPath)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	waitForShutdown(ctx, hup, watcher, app.logger)
	app.logger.Info("received shutdown signal")

	if watcher != nil {
		_ = watcher.Stop()
		app.reloadMetrics.watcherRunning.Set(0)
	}

	timeout := app.current().Config().Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := app.shutdown(shutdownCtx)
	app.logger.Info("avamcp stopped")
	return err
}

// waitForShutdown blocks until ctx is done. Each SIGHUP forces a reload of
// the configuration file.
func waitForShutdown(ctx context.Context, hup <-chan os.Signal, watcher *config.Watcher, logger observability.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if watcher == nil {
				logger.Warn("SIGHUP ignored: config watcher is not running")
				continue
			}
			logger.Info("SIGHUP received, reloading configuration")
			if err := watcher.Reload(); err != nil {
				logger.Error("forced reload failed", observability.Error(err))
			}
		}
	}
}
