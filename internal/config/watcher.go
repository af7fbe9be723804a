package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk.
// Invalid files are reported through the error callback and the last
// valid configuration stays current.
type Watcher struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	path    string
	current *Config

	onReload func(*Config)
	onError  func(error)

	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for path, starting from initial.
func NewWatcher(path string, initial *Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = ConfigPath()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		logger:  logger,
		watcher: fw,
		path:    path,
		current: initial,
		done:    make(chan struct{}),
	}, nil
}

// SetReloadCallback sets the callback invoked with each valid reload.
func (w *Watcher) SetReloadCallback(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = callback
}

// SetErrorCallback sets the callback invoked when a changed file fails to load.
func (w *Watcher) SetErrorCallback(callback func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching. The directory is watched rather than the file so
// editors that replace the file on save are handled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.watch(ctx)

	w.logger.Debug("config watcher started", "path", w.path)
	return nil
}

// watch is the main watch loop.
func (w *Watcher) watch(ctx context.Context) {
	filename := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only care about our file
			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ctx.Done():
			return

		case <-w.done:
			return
		}
	}
}

// reload loads and validates the file, then notifies the callbacks.
func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	if err != nil {
		// Replaced file not written yet
		return
	}
	if info.Size() == 0 {
		// Truncated by a non-atomic save; the write event follows.
		return
	}

	cfg, err := LoadConfig(w.path)

	w.mu.Lock()
	onReload := w.onReload
	onError := w.onError
	if err == nil {
		w.current = cfg
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("config file changed but validation failed", "path", w.path, "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	w.logger.Info("config reloaded", "path", w.path)
	if onReload != nil {
		onReload(cfg)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return w.watcher.Close()
	}

	w.running = false
	close(w.done)
	return w.watcher.Close()
}
