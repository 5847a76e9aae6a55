package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change before
// reloading. Editors often write a file in several steps.
const DefaultDebounce = 200 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnError sets the callback invoked when a reload fails. The previous
// catalog stays in service.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithLoadOptions passes options to every reload.
func WithLoadOptions(opts ...Option) WatcherOption {
	return func(w *Watcher) { w.loadOpts = append(w.loadOpts, opts...) }
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// Watcher reloads a topics directory when its YAML files change.
type Watcher struct {
	dir      string
	debounce time.Duration
	onReload func(*Catalog)
	onError  func(error)
	loadOpts []Option
	logger   *slog.Logger
}

// NewWatcher creates a watcher for dir. onReload receives every successfully
// loaded catalog.
func NewWatcher(dir string, onReload func(*Catalog), opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:      abs,
		debounce: DefaultDebounce,
		onReload: onReload,
		onError:  func(error) {},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Load loads the directory once.
func (w *Watcher) Load() (*Catalog, error) {
	return Load(os.DirFS(w.dir), w.loadOpts...)
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching topics", "dir", w.dir)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".yaml") || ev.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.onError(fmt.Errorf("catalog: watch: %w", err))

		case <-timerCh:
			timerCh = nil
			c, err := w.Load()
			if err != nil {
				w.logger.Warn("topic reload failed", "error", err)
				w.onError(err)
				continue
			}
			w.logger.Info("topics reloaded", "count", c.Len())
			w.onReload(c)
		}
	}
}
