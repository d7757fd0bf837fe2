package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads configuration when one of the loader's files changes and
// hands every valid result to onChange. Invalid edits are logged and the
// previous configuration stays in effect.
type Watcher struct {
	loader   *Loader
	onChange func(*Config)
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	files   map[string]bool

	mu      sync.Mutex
	pending bool
}

// NewWatcher watches the directories holding the loader's files. Directories
// are watched rather than files so editor rename-and-replace saves are seen.
func NewWatcher(loader *Loader, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files := loader.Files()
	if len(files) == 0 {
		return nil, fmt.Errorf("no config files to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		loader:   loader,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
		watcher:  fsw,
		files:    make(map[string]bool),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	w.logger.Info("Config watcher started", "files", len(w.files))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Config watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	if !w.files[abs] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()

	w.logger.Debug("Config change detected", "path", abs, "op", event.Op.String())
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	w.Reload()
}

// Reload loads the configuration now and notifies on success.
func (w *Watcher) Reload() bool {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("Config reload rejected, keeping previous config", "error", err)
		return false
	}
	w.logger.Info("Config reloaded",
		"primary", cfg.Providers.Primary,
		"strategy", cfg.Generation.Strategy)
	w.onChange(cfg)
	return true
}
