// Package engine hosts mounted diagram views. An Engine is the per-topic
// parameterization of the step sequencer; every View it mounts owns one
// sequencer and one auto-advance timer, both confined to the view's event
// loop goroutine.
package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rendis/patternlab/internal/logging"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/stepper"
	"github.com/rendis/patternlab/internal/streaming"
	"github.com/rendis/patternlab/pkg/schema"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock driving auto-advance. Tests pass a fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithHub sets the hub receiving view events.
func WithHub(h streaming.EventHub) Option {
	return func(e *Engine) { e.hub = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine mounts views of one diagram.
type Engine struct {
	cfg    Config
	table  stepper.ModeTable
	clock  clockwork.Clock
	hub    streaming.EventHub
	logger *slog.Logger
}

// New validates cfg and creates an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, _ := stepper.NewModeTable(cfg.Modes)
	e := &Engine{cfg: cfg, table: table}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Topic returns the configured topic ID.
func (e *Engine) Topic() string { return e.cfg.Topic }

// Modes returns the modes in declaration order.
func (e *Engine) Modes() []schema.DiagramMode { return e.table.Modes() }

// Mount creates a view paused at step 0 of the default mode and starts its
// event loop. The view outlives ctx; only Close ends it.
func (e *Engine) Mount(ctx context.Context) (*View, error) {
	return e.mount(ctx, uuid.NewString())
}

func (e *Engine) mount(ctx context.Context, id string) (*View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loopCtx = logging.WithIDs(loopCtx, id, e.cfg.Topic, "")

	v := &View{
		id:     id,
		engine: e,
		seq:    stepper.New(e.table),
		timer:  scheduler.New(e.clock, e.cfg.Cadence, logging.LogWith(loopCtx, e.logger)),
		cmds:   make(chan command),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: e.logger,
	}
	v.Touch()
	v.commit(loopCtx, schema.EventViewMounted, schema.SourceManual)
	e.logger.DebugContext(logging.WithMode(loopCtx, string(v.seq.Mode())), "view mounted")

	go v.run(loopCtx)
	return v, nil
}
