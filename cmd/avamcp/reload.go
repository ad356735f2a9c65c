package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/gateway"
	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// reloadMetrics holds Prometheus metrics for configuration reloads. They
// outlive any single gateway, so they live in their own registry that each
// gateway merges into /metrics.
type reloadMetrics struct {
	registry *prometheus.Registry

	reloadTotal       *prometheus.CounterVec
	reloadDuration    prometheus.Histogram
	reloadLastSuccess prometheus.Gauge
	watcherRunning    prometheus.Gauge
}

func newReloadMetrics(namespace string) *reloadMetrics {
	rm := &reloadMetrics{
		registry: prometheus.NewRegistry(),
		reloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_total",
				Help:      "Total number of configuration reloads",
			},
			[]string{"result"},
		),
		reloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "config_reload_duration_seconds",
				Help:      "Duration of configuration reload operations",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		reloadLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_reload_last_success_timestamp_seconds",
				Help:      "Timestamp of last successful config reload",
			},
		),
		watcherRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_watcher_running",
				Help:      "Whether the config file watcher is running (1=running, 0=stopped)",
			},
		),
	}
	rm.registry.MustRegister(rm.reloadTotal, rm.reloadDuration, rm.reloadLastSuccess, rm.watcherRunning)
	return rm
}

func (rm *reloadMetrics) observe(result string, start time.Time) {
	rm.reloadTotal.WithLabelValues(result).Inc()
	rm.reloadDuration.Observe(time.Since(start).Seconds())
	if result == "success" {
		rm.reloadLastSuccess.SetToCurrentTime()
	}
}

// startConfigWatcher watches configPath and reloads the gateway on every
// valid change. A nil watcher means hot reload is unavailable.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	logger := app.logger

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")
		if err := app.reload(ctx, newCfg); err != nil {
			logger.Error("failed to reload configuration", observability.Error(err))
		}
	},
		config.WithLogger(logger),
		config.WithErrorCallback(func(err error) {
			app.reloadMetrics.reloadTotal.WithLabelValues("invalid").Inc()
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		app.reloadMetrics.watcherRunning.Set(0)
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		app.reloadMetrics.watcherRunning.Set(0)
		return nil
	}

	app.reloadMetrics.watcherRunning.Set(1)
	return watcher
}

// reload replaces the running gateway with one built from newCfg. The old
// gateway keeps serving until the new one is built. When both bind the same
// address the old one is stopped first, and restored from its own
// configuration if the new one fails to start.
func (app *application) reload(ctx context.Context, newCfg *config.Config) error {
	start := time.Now()

	app.mu.Lock()
	defer app.mu.Unlock()

	if !configSectionChanged(app.config, newCfg) {
		app.logger.Debug("configuration unchanged, skipping reload")
		return nil
	}
	if configSectionChanged(app.config.Logging, newCfg.Logging) ||
		configSectionChanged(app.config.Tracing, newCfg.Tracing) {
		app.logger.Warn("logging and tracing changes are NOT hot-reloaded; restart to apply them")
	}

	next, err := app.newGateway(newCfg)
	if err != nil {
		app.reloadMetrics.observe("error", start)
		return err
	}

	if err := app.swap(ctx, next); err != nil {
		app.reloadMetrics.observe("error", start)
		return err
	}

	app.config = newCfg
	app.reloadMetrics.observe("success", start)
	app.logger.Info("configuration reloaded",
		observability.Duration("duration", time.Since(start)),
		observability.Int("routes", len(newCfg.Routes)),
	)
	return nil
}

// swap starts next and stops the current gateway. Callers hold app.mu.
func (app *application) swap(ctx context.Context, next *gateway.Gateway) error {
	prev := app.gateway

	if next.Config().Server.Listen != prev.Config().Server.Listen {
		if err := next.Start(ctx); err != nil {
			_ = next.Discard()
			return err
		}
		app.gateway = next
		app.stopQuietly(ctx, prev)
		return nil
	}

	app.stopQuietly(ctx, prev)
	if err := next.Start(ctx); err != nil {
		_ = next.Discard()
		restored, restoreErr := app.restore(ctx)
		if restoreErr != nil {
			return errors.Join(err, fmt.Errorf("restore previous gateway: %w", restoreErr))
		}
		app.gateway = restored
		return err
	}
	app.gateway = next
	return nil
}

// restore starts a fresh gateway from the last applied configuration.
func (app *application) restore(ctx context.Context) (*gateway.Gateway, error) {
	gw, err := app.newGateway(app.config)
	if err != nil {
		return nil, err
	}
	if err := gw.Start(ctx); err != nil {
		_ = gw.Discard()
		return nil, err
	}
	return gw, nil
}

func (app *application) stopQuietly(ctx context.Context, gw *gateway.Gateway) {
	if !gw.IsRunning() {
		return
	}
	if err := gw.Stop(ctx); err != nil {
		app.logger.Warn("previous gateway did not stop cleanly", observability.Error(err))
	}
}

// configSectionHash computes a SHA-256 hash of a configuration section. The
// YAML form is hashed because the JSON form omits secrets.
func configSectionHash(v interface{}) ([sha256.Size]byte, bool) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}

// configSectionChanged compares two configuration sections by hash,
// falling back to reflect.DeepEqual when either cannot be marshaled.
func configSectionChanged(oldSection, newSection interface{}) bool {
	oldHash, oldOK := configSectionHash(oldSection)
	newHash, newOK := configSectionHash(newSection)
	if oldOK && newOK {
		return oldHash != newHash
	}
	return !reflect.DeepEqual(oldSection, newSection)
}
