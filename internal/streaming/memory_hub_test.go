package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/patternlab/pkg/schema"
)

func advanced(viewID string, step int) StreamEvent {
	return StreamEvent{
		ViewID:    viewID,
		Topic:     "choreography",
		EventType: schema.EventViewAdvanced,
		Source:    schema.SourceTimer,
		Snapshot:  schema.Snapshot{ViewID: viewID, Mode: "orchestration", Step: step, TotalSteps: 5, IsPlaying: true},
	}
}

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	event := advanced("v-1", 2)
	require.NoError(t, hub.Publish(ctx, event))

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFilterByViewID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{ViewID: "v-1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, advanced("v-1", 1)))
	require.NoError(t, hub.Publish(ctx, advanced("v-2", 1)))

	select {
	case got := <-ch:
		assert.Equal(t, "v-1", got.ViewID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterByTopicAndType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		Topic:      "choreography",
		EventTypes: []string{schema.EventViewModeChanged, schema.EventViewClosed},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{ViewID: "v", Topic: "choreography", EventType: schema.EventViewModeChanged}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{ViewID: "v", Topic: "choreography", EventType: schema.EventViewAdvanced}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{ViewID: "w", Topic: "fanout", EventType: schema.EventViewClosed}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{ViewID: "v", Topic: "choreography", EventType: schema.EventViewClosed}))

	var received []string
	for i := 0; i < 2; i++ {
		select {
		case got := <-ch:
			received = append(received, got.EventType)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{schema.EventViewModeChanged, schema.EventViewClosed}, received)

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribers(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel1()

	ch2, cancel2, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel2()

	assert.Equal(t, 2, hub.Subscribers())
	require.NoError(t, hub.Publish(ctx, advanced("v-1", 3)))

	for _, ch := range []<-chan StreamEvent{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, 3, got.Snapshot.Step)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestCancelSubscription(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)

	cancel()
	cancel() // idempotent

	require.NoError(t, hub.Publish(ctx, advanced("v-1", 1)))

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event after cancel: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, hub.Subscribers())
}

func TestBackpressureKeepsNewest(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	total := defaultChannelBuffer + 10
	for i := 0; i < total; i++ {
		require.NoError(t, hub.Publish(ctx, advanced("v-1", i)))
	}

	var steps []int
	for {
		select {
		case evt := <-ch:
			steps = append(steps, evt.Snapshot.Step)
			continue
		default:
		}
		break
	}
	require.Len(t, steps, defaultChannelBuffer)
	assert.Equal(t, 10, steps[0])
	assert.Equal(t, total-1, steps[len(steps)-1])
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()
	const goroutines = 20
	const eventsPerGoroutine = 50

	var wg sync.WaitGroup

	cancels := make([]func(), goroutines)
	for i := 0; i < goroutines; i++ {
		_, cancel, err := hub.Subscribe(ctx, EventFilter{})
		require.NoError(t, err)
		cancels[i] = cancel
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				_ = hub.Publish(ctx, advanced("v-concurrent", j))
			}
		}()
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
			if err != nil {
				return
			}
			for range 5 {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
		}()
	}

	wg.Wait()
}

func TestPublishCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Publish(ctx, advanced("v-1", 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribeCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
