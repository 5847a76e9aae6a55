package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rendis/patternlab/internal/logging"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/stepper"
	"github.com/rendis/patternlab/internal/streaming"
	"github.com/rendis/patternlab/pkg/schema"
)

type command struct {
	action stepper.Action
	mode   schema.DiagramMode
	reply  chan result
}

type result struct {
	snap schema.Snapshot
	err  error
}

// View is one mounted diagram. All transitions, manual or timed, are applied
// in order on the view's own goroutine. Methods are safe for concurrent use.
type View struct {
	id     string
	engine *Engine
	logger *slog.Logger

	// Owned by the event loop.
	seq     *stepper.Sequencer
	timer   *scheduler.AutoAdvance
	version uint64

	cmds       chan command
	snap       atomic.Pointer[schema.Snapshot]
	lastActive atomic.Int64 // unix nanos of the last command or Touch
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

// ID returns the view's identifier.
func (v *View) ID() string { return v.id }

// Topic returns the topic the view was mounted for.
func (v *View) Topic() string { return v.engine.cfg.Topic }

// Modes returns the modes available to SetMode.
func (v *View) Modes() []schema.DiagramMode { return v.engine.table.Modes() }

// Snapshot returns the latest published state.
func (v *View) Snapshot() schema.Snapshot { return *v.snap.Load() }

// Done is closed once the view has been torn down.
func (v *View) Done() <-chan struct{} { return v.done }

// NextStep advances one step.
func (v *View) NextStep(ctx context.Context) (schema.Snapshot, error) {
	return v.do(ctx, command{action: stepper.ActionNext})
}

// TogglePlay starts or stops auto-advance.
func (v *View) TogglePlay(ctx context.Context) (schema.Snapshot, error) {
	return v.do(ctx, command{action: stepper.ActionToggle})
}

// SetMode switches mode, returning to step 0 and pausing.
func (v *View) SetMode(ctx context.Context, mode schema.DiagramMode) (schema.Snapshot, error) {
	return v.do(ctx, command{action: stepper.ActionSetMode, mode: mode})
}

// Reset returns to step 0 and pauses.
func (v *View) Reset(ctx context.Context) (schema.Snapshot, error) {
	return v.do(ctx, command{action: stepper.ActionReset})
}

// Render renders the current snapshot with the configured renderer.
func (v *View) Render() (string, error) {
	return v.RenderSnapshot(v.Snapshot())
}

// RenderSnapshot renders snap, which may be older than the current state,
// with the configured renderer.
func (v *View) RenderSnapshot(snap schema.Snapshot) (string, error) {
	r := v.engine.cfg.Render
	if r == nil {
		return "", schema.NewError(schema.ErrCodeRender, "no renderer configured").WithTopic(v.Topic())
	}
	return r.Render(snap)
}

// Touch marks the view as in use. Commands touch it implicitly; timer ticks
// do not.
func (v *View) Touch() {
	v.lastActive.Store(v.engine.clock.Now().UnixNano())
}

// LastActive returns when the view was last commanded or touched.
func (v *View) LastActive() time.Time {
	return time.Unix(0, v.lastActive.Load())
}

// Close tears the view down: the timer is stopped, the loop exits and a
// view.closed event is published. Later commands fail with CLOSED. Close
// is idempotent and returns once teardown is complete.
func (v *View) Close() error {
	v.closeOnce.Do(func() {
		v.cancel()
		<-v.done
	})
	return nil
}

func (v *View) closedError() error {
	return schema.NewErrorf(schema.ErrCodeClosed, "view %s is closed", v.id).WithTopic(v.Topic())
}

func (v *View) do(ctx context.Context, cmd command) (schema.Snapshot, error) {
	v.Touch()
	cmd.reply = make(chan result, 1)
	select {
	case v.cmds <- cmd:
	case <-v.done:
		return schema.Snapshot{}, v.closedError()
	case <-ctx.Done():
		return schema.Snapshot{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.snap, r.err
	case <-v.done:
		select {
		case r := <-cmd.reply:
			return r.snap, r.err
		default:
			return schema.Snapshot{}, v.closedError()
		}
	}
}

func (v *View) run(ctx context.Context) {
	defer close(v.done)
	defer v.teardown(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-v.cmds:
			if ctx.Err() != nil {
				cmd.reply <- result{err: v.closedError()}
				return
			}
			snap, err := v.apply(ctx, cmd)
			cmd.reply <- result{snap: snap, err: err}
		case at := <-v.timer.C():
			if ctx.Err() != nil {
				return
			}
			v.tick(ctx, at)
		}
	}
}

func (v *View) apply(ctx context.Context, cmd command) (schema.Snapshot, error) {
	var (
		tr        stepper.Transition
		eventType string
	)
	switch cmd.action {
	case stepper.ActionNext:
		tr = v.seq.NextStep()
		eventType = schema.EventViewAdvanced
	case stepper.ActionToggle:
		tr = v.seq.TogglePlay()
		eventType = schema.EventViewPaused
		if tr.Started() {
			eventType = schema.EventViewPlaying
		}
	case stepper.ActionSetMode:
		var err error
		if tr, err = v.seq.SetMode(cmd.mode); err != nil {
			return v.Snapshot(), err
		}
		eventType = schema.EventViewModeChanged
	case stepper.ActionReset:
		tr = v.seq.Reset()
		eventType = schema.EventViewReset
	default:
		return v.Snapshot(), schema.NewErrorf(schema.ErrCodeValidation, "unknown action %q", cmd.action)
	}

	switch {
	case tr.Started():
		v.timer.Start(v.engine.clock.Now())
	case !v.seq.IsPlaying():
		v.timer.Stop()
	}

	snap := v.commit(ctx, eventType, schema.SourceManual)
	v.logger.DebugContext(logging.WithMode(ctx, string(snap.Mode)), "view transition",
		slog.String("action", string(tr.Action)),
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)),
		slog.Int("step", snap.Step),
	)
	return snap, nil
}

func (v *View) tick(ctx context.Context, at time.Time) {
	if !v.seq.IsPlaying() {
		v.timer.Stop()
		return
	}
	v.timer.Fired(at)
	v.seq.NextStep()
	v.commit(ctx, schema.EventViewAdvanced, schema.SourceTimer)
}

func (v *View) teardown(ctx context.Context) {
	v.timer.Stop()
	if v.seq.IsPlaying() {
		v.seq.TogglePlay()
	}
	v.commit(ctx, schema.EventViewClosed, schema.SourceManual)
	v.logger.DebugContext(ctx, "view closed")
}

// commit publishes the sequencer state as the view's new snapshot and
// emits it to the hub.
func (v *View) commit(ctx context.Context, eventType, source string) schema.Snapshot {
	v.version++
	snap := v.seq.Snapshot()
	snap.ViewID = v.id
	snap.Topic = v.engine.cfg.Topic
	snap.Seq = v.version
	v.snap.Store(&snap)

	if v.engine.hub != nil {
		err := v.engine.hub.Publish(context.WithoutCancel(ctx), streaming.StreamEvent{
			ViewID:    v.id,
			Topic:     snap.Topic,
			EventType: eventType,
			Source:    source,
			Snapshot:  snap,
			At:        v.engine.clock.Now(),
		})
		if err != nil {
			v.logger.WarnContext(ctx, "publish view event", slog.String("event", eventType), slog.String("error", err.Error()))
		}
	}
	return snap
}
