package observe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xfhg/intercept/pkg/config"
	"github.com/xfhg/intercept/pkg/policy"
)

// LoadFunc loads and validates a policy file.
type LoadFunc func(path string) (*policy.Document, error)

// PolicyWatcher reloads a local policy file when it changes. Invalid
// policies are logged and the current policy stays in effect.
type PolicyWatcher struct {
	path     string
	load     LoadFunc
	apply    func(*policy.Document)
	debounce *debouncer
	logger   *slog.Logger
}

// NewPolicyWatcher creates a watcher for path. apply is called with every
// successfully loaded policy.
func NewPolicyWatcher(path string, interval time.Duration, load LoadFunc, apply func(*policy.Document), logger *slog.Logger) *PolicyWatcher {
	if interval <= 0 {
		interval = config.DefaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyWatcher{
		path:     filepath.Clean(path),
		load:     load,
		apply:    apply,
		debounce: newDebouncer(interval),
		logger:   logger.With("component", "observe.watcher"),
	}
}

// Watch blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are noticed.
func (w *PolicyWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	defer w.debounce.stop()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}
	w.logger.Info("policy watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("policy file event", "op", event.Op.String())
			w.debounce.trigger(w.reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

func (w *PolicyWatcher) reload() {
	doc, err := w.load(w.path)
	if err != nil {
		w.logger.Error("policy reload rejected, keeping current policy", "error", err)
		return
	}
	w.apply(doc)
	w.logger.Info("policy reloaded", "path", w.path, "rules", len(doc.Rules))
}

// debouncer runs the last triggered callback once no trigger arrived for
// the interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
