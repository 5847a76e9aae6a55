package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rendis/patternlab/pkg/schema"
)

// DefaultMaxViews bounds the number of concurrently mounted views.
const DefaultMaxViews = 256

// DefaultIdleTimeout is how long a view with no attached stream may go
// without a command before the registry closes it.
const DefaultIdleTimeout = 2 * time.Minute

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTimeout sets the idle window. d <= 0 disables idle closing.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

// WithRegistryClock sets the clock the idle sweep runs on. It should be the
// clock the registered engines use.
func WithRegistryClock(c clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

type entry struct {
	view     *View
	attached int
}

// Registry tracks live views by ID. A view leaves the registry as soon as it
// is torn down, however the teardown was triggered. Views nobody streams
// and nobody commands for the idle window are closed.
type Registry struct {
	mu     sync.Mutex
	views  map[string]*entry
	max    int
	idle   time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a Registry holding at most maxViews views.
// maxViews <= 0 uses DefaultMaxViews.
func NewRegistry(maxViews int, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if maxViews <= 0 {
		maxViews = DefaultMaxViews
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		views:  make(map[string]*entry),
		max:    maxViews,
		idle:   DefaultIdleTimeout,
		logger: logger,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.idle > 0 {
		ticker := r.clock.NewTicker(max(r.idle/4, time.Millisecond))
		go r.sweepLoop(ticker)
	}
	return r
}

// IdleTimeout returns the idle window, zero when disabled.
func (r *Registry) IdleTimeout() time.Duration {
	if r.idle < 0 {
		return 0
	}
	return r.idle
}

// Mount mounts a new view of e and registers it. It fails with CONFLICT
// when the registry is full.
func (r *Registry) Mount(ctx context.Context, e *Engine) (*View, error) {
	r.mu.Lock()
	if len(r.views) >= r.max {
		r.mu.Unlock()
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "view limit of %d reached", r.max).
			WithTopic(e.Topic())
	}
	v, err := e.Mount(ctx)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.views[v.ID()] = &entry{view: v}
	r.mu.Unlock()

	go func() {
		<-v.Done()
		r.mu.Lock()
		if en, ok := r.views[v.ID()]; ok && en.view == v {
			delete(r.views, v.ID())
		}
		r.mu.Unlock()
	}()
	return v, nil
}

// Get returns the live view with the given ID.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.views[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "view %q not found", id)
	}
	return en.view, nil
}

// Attach returns the view and keeps it exempt from idle closing until
// release is called. Streams attach for as long as a client listens; the
// idle window restarts when the last one releases.
func (r *Registry) Attach(id string) (*View, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.views[id]
	if !ok {
		return nil, nil, schema.NewErrorf(schema.ErrCodeNotFound, "view %q not found", id)
	}
	en.attached++

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			if en.attached > 0 {
				en.attached--
			}
			r.mu.Unlock()
			en.view.Touch()
		})
	}
	return en.view, release, nil
}

// Close tears down the view with the given ID and removes it.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	en, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "view %q not found", id)
	}
	return en.view.Close()
}

// CloseAll tears down every live view and stops idle sweeping. Used on
// shutdown.
func (r *Registry) CloseAll() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	views := make([]*View, 0, len(r.views))
	for id, en := range r.views {
		views = append(views, en.view)
		delete(r.views, id)
	}
	r.mu.Unlock()

	closeViews(views)
	if len(views) > 0 {
		r.logger.Info("closed views", slog.Int("count", len(views)))
	}
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// CloseIdle closes every unattached view whose last activity is at least
// the idle window old, and returns how many it closed.
func (r *Registry) CloseIdle() int {
	if r.idle <= 0 {
		return 0
	}
	now := r.clock.Now()

	r.mu.Lock()
	var idle []*View
	for id, en := range r.views {
		if en.attached > 0 || now.Sub(en.view.LastActive()) < r.idle {
			continue
		}
		idle = append(idle, en.view)
		delete(r.views, id)
	}
	r.mu.Unlock()

	for _, v := range idle {
		r.logger.Info("closing idle view",
			slog.String("view_id", v.ID()),
			slog.String("topic", v.Topic()),
			slog.Duration("idle", now.Sub(v.LastActive())))
	}
	closeViews(idle)
	return len(idle)
}

func (r *Registry) sweepLoop(ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.Chan():
			r.CloseIdle()
		}
	}
}

func closeViews(views []*View) {
	var wg sync.WaitGroup
	for _, v := range views {
		wg.Add(1)
		go func(v *View) {
			defer wg.Done()
			_ = v.Close()
		}(v)
	}
	wg.Wait()
}
