package engine

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/stepper"
	"github.com/rendis/patternlab/internal/streaming"
	"github.com/rendis/patternlab/pkg/schema"
)

const (
	tick          = 1500 * time.Millisecond
	orchestration = schema.DiagramMode("orchestration")
	choreography  = schema.DiagramMode("choreography")
)

func choreographyConfig() Config {
	return Config{
		Topic: "choreography",
		Modes: []stepper.ModeSpec{
			{Mode: orchestration, Steps: 5},
			{Mode: choreography, Steps: 4},
		},
		Cadence: scheduler.Every(tick),
		Render: RenderFunc(func(s schema.Snapshot) (string, error) {
			return string(s.Mode) + " " + s.Label(), nil
		}),
	}
}

type harness struct {
	engine *Engine
	clock  *clockwork.FakeClock
	hub    *streaming.MemoryHub
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{clock: clockwork.NewFakeClock(), hub: streaming.NewMemoryHub()}
	e, err := New(cfg, WithClock(h.clock), WithHub(h.hub))
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) mount(t *testing.T) *View {
	t.Helper()
	v, err := h.engine.Mount(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func waitStep(t *testing.T, v *View, step int) {
	t.Helper()
	require.Eventually(t, func() bool { return v.Snapshot().Step == step },
		time.Second, time.Millisecond, "view never reached step %d (at %d)", step, v.Snapshot().Step)
}

func holdsStep(t *testing.T, v *View, step int) {
	t.Helper()
	assert.Never(t, func() bool { return v.Snapshot().Step != step },
		50*time.Millisecond, 5*time.Millisecond, "step moved from %d", step)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, choreographyConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no modes", func(c *Config) { c.Modes = nil }},
		{"zero steps", func(c *Config) { c.Modes[1].Steps = 0 }},
		{"duplicate", func(c *Config) { c.Modes[1].Mode = orchestration }},
		{"nil cadence", func(c *Config) { c.Cadence = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := choreographyConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

			_, err = New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestMount_InitialSnapshot(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)

	snap := v.Snapshot()
	assert.Equal(t, v.ID(), snap.ViewID)
	assert.Equal(t, "choreography", snap.Topic)
	assert.Equal(t, orchestration, snap.Mode)
	assert.Equal(t, 0, snap.Step)
	assert.Equal(t, 5, snap.TotalSteps)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, []schema.DiagramMode{orchestration, choreography}, v.Modes())
}

func TestView_ManualStepping(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)
	ctx := context.Background()

	var steps []int
	for i := 0; i < 5; i++ {
		snap, err := v.NextStep(ctx)
		require.NoError(t, err)
		steps = append(steps, snap.Step)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 0}, steps)
}

func TestView_AutoplayTiming(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)

	snap, err := v.TogglePlay(context.Background())
	require.NoError(t, err)
	require.True(t, snap.IsPlaying)
	require.Equal(t, 0, snap.Step)

	h.clock.Advance(tick - time.Millisecond)
	holdsStep(t, v, 0)

	h.clock.Advance(time.Millisecond) // t=1500ms
	waitStep(t, v, 1)

	h.clock.Advance(tick) // t=3000ms
	waitStep(t, v, 2)
	assert.True(t, v.Snapshot().IsPlaying)
}

func TestView_AutoplayWrapsAroundMode(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)
	_, err := v.TogglePlay(context.Background())
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		h.clock.Advance(tick)
		waitStep(t, v, i%5)
	}
}

func TestView_ModeSwitchMidPlayback(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)
	ctx := context.Background()
	baseline := scheduler.ActiveTimers()

	_, err := v.TogglePlay(ctx)
	require.NoError(t, err)
	assert.Equal(t, baseline+1, scheduler.ActiveTimers())
	for i := 1; i <= 3; i++ {
		h.clock.Advance(tick)
		waitStep(t, v, i)
	}

	snap, err := v.SetMode(ctx, choreography)
	require.NoError(t, err)
	assert.Equal(t, choreography, snap.Mode)
	assert.Equal(t, 0, snap.Step)
	assert.Equal(t, 4, snap.TotalSteps)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, baseline, scheduler.ActiveTimers())

	h.clock.Advance(3 * tick)
	holdsStep(t, v, 0)
}

func TestView_SetModeUnknown(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)

	_, err := v.SetMode(context.Background(), "saga")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Equal(t, orchestration, v.Snapshot().Mode)
}

func TestView_ResetDuringPlayback(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)
	ctx := context.Background()

	_, err := v.TogglePlay(ctx)
	require.NoError(t, err)
	h.clock.Advance(tick)
	waitStep(t, v, 1)
	h.clock.Advance(tick)
	waitStep(t, v, 2)

	snap, err := v.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Step)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, orchestration, snap.Mode)

	h.clock.Advance(2 * tick)
	holdsStep(t, v, 0)
}

func TestView_PauseDiscardsPendingTick(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)
	ctx := context.Background()

	_, err := v.TogglePlay(ctx)
	require.NoError(t, err)
	h.clock.Advance(tick)

	// The tick and the pause race; whichever wins, nothing moves afterwards.
	snap, err := v.TogglePlay(ctx)
	require.NoError(t, err)
	require.False(t, snap.IsPlaying)

	h.clock.Advance(4 * tick)
	holdsStep(t, v, snap.Step)
}

func TestView_EventsCarrySource(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)
	ctx := context.Background()

	events, cancel, err := h.hub.Subscribe(ctx, streaming.EventFilter{ViewID: v.ID()})
	require.NoError(t, err)
	defer cancel()

	_, err = v.NextStep(ctx)
	require.NoError(t, err)
	_, err = v.TogglePlay(ctx)
	require.NoError(t, err)
	h.clock.Advance(tick)
	waitStep(t, v, 2)

	want := []struct {
		eventType string
		source    string
		step      int
	}{
		{schema.EventViewAdvanced, schema.SourceManual, 1},
		{schema.EventViewPlaying, schema.SourceManual, 1},
		{schema.EventViewAdvanced, schema.SourceTimer, 2},
	}
	var lastSeq uint64
	for _, w := range want {
		select {
		case evt := <-events:
			assert.Equal(t, w.eventType, evt.EventType)
			assert.Equal(t, w.source, evt.Source)
			assert.Equal(t, w.step, evt.Snapshot.Step)
			assert.Greater(t, evt.Snapshot.Seq, lastSeq)
			lastSeq = evt.Snapshot.Seq
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", w.eventType)
		}
	}
}

func TestView_CloseWhilePlaying(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	ctx := context.Background()
	baseline := scheduler.ActiveTimers()

	v, err := h.engine.Mount(ctx)
	require.NoError(t, err)
	events, cancel, err := h.hub.Subscribe(ctx, streaming.EventFilter{ViewID: v.ID()})
	require.NoError(t, err)
	defer cancel()

	_, err = v.TogglePlay(ctx)
	require.NoError(t, err)
	h.clock.Advance(tick)
	waitStep(t, v, 1)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.Equal(t, baseline, scheduler.ActiveTimers())

	select {
	case <-v.Done():
	default:
		t.Fatal("done not closed after Close")
	}

	h.clock.Advance(10 * tick)
	time.Sleep(20 * time.Millisecond)

	var types []string
	for {
		select {
		case evt := <-events:
			types = append(types, evt.EventType)
			continue
		default:
		}
		break
	}
	require.NotEmpty(t, types)
	assert.Equal(t, schema.EventViewClosed, types[len(types)-1])
	assert.Equal(t, 1, v.Snapshot().Step)
	assert.False(t, v.Snapshot().IsPlaying)

	for _, op := range []func(context.Context) (schema.Snapshot, error){v.NextStep, v.TogglePlay, v.Reset} {
		_, err := op(ctx)
		assert.True(t, schema.IsCode(err, schema.ErrCodeClosed), "got %v", err)
	}
	_, err = v.SetMode(ctx, choreography)
	assert.True(t, schema.IsCode(err, schema.ErrCodeClosed))
}

func TestView_Render(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)

	_, err := v.NextStep(context.Background())
	require.NoError(t, err)
	out, err := v.Render()
	require.NoError(t, err)
	assert.Equal(t, "orchestration Step 2 / 5", out)

	cfg := choreographyConfig()
	cfg.Render = nil
	bare := newHarness(t, cfg).mount(t)
	_, err = bare.Render()
	assert.True(t, schema.IsCode(err, schema.ErrCodeRender))
}

func TestView_CommandHonoursContext(t *testing.T) {
	h := newHarness(t, choreographyConfig())
	v := h.mount(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.engine.Mount(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// A cancelled caller may still race the loop; either outcome is valid.
	_, err = v.NextStep(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
