package streaming

import (
	"context"
	"time"

	"github.com/rendis/patternlab/pkg/schema"
)

// StreamEvent is a real-time event emitted for every applied view transition.
type StreamEvent struct {
	ViewID    string          `json:"view_id"`
	Topic     string          `json:"topic,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source,omitempty"`
	Snapshot  schema.Snapshot `json:"snapshot"`
	At        time.Time       `json:"at"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	ViewID     string   `json:"view_id,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time view events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
