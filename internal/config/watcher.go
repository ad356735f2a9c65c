package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// DefaultDebounceDelay collapses bursts of file events into one reload.
const DefaultDebounceDelay = 100 * time.Millisecond

// ConfigCallback is called with each valid new configuration.
type ConfigCallback func(*Config)

// ErrorCallback is called when a reload fails.
type ErrorCallback func(error)

// Watcher reloads the configuration file when its content changes.
// Invalid configurations are reported and otherwise ignored, so the last
// valid snapshot stays in effect.
type Watcher struct {
	path          string
	fs            *fsnotify.Watcher
	callback      ConfigCallback
	errorCallback ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration
	loaderOpts    []LoaderOption

	mu         sync.RWMutex
	lastConfig *Config
	lastDigest [sha256.Size]byte
	running    bool

	// reloadMu serializes reloads from file events and Reload.
	reloadMu  sync.Mutex
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// WithLoaderOptions sets the options used for every load.
func WithLoaderOptions(opts ...LoaderOption) WatcherOption {
	return func(w *Watcher) {
		w.loaderOpts = opts
	}
}

// NewWatcher creates a watcher for the file at path. Nothing is read
// until Start.
func NewWatcher(path string, callback ConfigCallback, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		fs:            fsWatcher,
		callback:      callback,
		debounceDelay: DefaultDebounceDelay,
		logger:        observability.NopLogger(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the file once and begins watching its directory. The
// directory is watched, not the file, so editors that replace the file
// on save keep working.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	data, cfg, err := w.load()
	if err != nil {
		return err
	}
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.lastDigest = sha256.Sum256(data)
	w.running = true
	w.mu.Unlock()

	w.logger.Info("started watching configuration file", observability.String("path", w.path))

	go w.watch(ctx)
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fs.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
	return w.fs.Close()
}

// LastConfig returns the last successfully loaded configuration.
func (w *Watcher) LastConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastConfig
}

// Reload re-reads the file even when its content is unchanged, so
// environment variables and vault secrets are resolved again. It is
// meant for SIGHUP.
func (w *Watcher) Reload() error {
	return w.reload(true)
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	debounce := time.NewTimer(w.debounceDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.logger.Debug("config file changed",
					observability.String("path", event.Name),
					observability.String("op", event.Op.String()),
				)
				debounce.Reset(w.debounceDelay)
			}

		case <-debounce.C:
			_ = w.reload(false)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.reportError("config watcher error", err)
		}
	}
}

// relevant reports whether event may have changed the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload loads the file and hands a valid result to the callback. Unless
// forced, a file whose bytes are unchanged is skipped.
func (w *Watcher) reload(force bool) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		err = fmt.Errorf("failed to read config file %s: %w", w.path, err)
		w.reportError("configuration reload rejected", err)
		return err
	}

	digest := sha256.Sum256(data)
	w.mu.RLock()
	unchanged := digest == w.lastDigest
	w.mu.RUnlock()
	if unchanged && !force {
		w.logger.Debug("config file content unchanged, skipping reload")
		return nil
	}

	w.logger.Info("reloading configuration",
		observability.String("path", w.path),
		observability.Bool("forced", force),
	)

	cfg, err := LoadConfigFromReader(bytes.NewReader(data), w.loaderOpts...)
	if err != nil {
		w.reportError("configuration reload rejected", err)
		return err
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.lastDigest = digest
	w.mu.Unlock()

	if w.callback != nil {
		w.callback(cfg)
	}
	return nil
}

func (w *Watcher) load() ([]byte, *Config, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file %s: %w", w.path, err)
	}
	cfg, err := LoadConfigFromReader(bytes.NewReader(data), w.loaderOpts...)
	if err != nil {
		return nil, nil, err
	}
	return data, cfg, nil
}

func (w *Watcher) reportError(msg string, err error) {
	w.logger.Error(msg, observability.Error(err))
	if w.errorCallback != nil {
		w.errorCallback(err)
	}
}
