package site

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/rendis/patternlab/internal/streaming"
	"github.com/rendis/patternlab/pkg/schema"
)

// handleSSEView streams a view's snapshots. The first message is the
// current state; the stream ends when the view closes. The view stays
// attached while the client listens. A client that goes away only detaches,
// so an EventSource reconnect resumes the same view; the registry closes it
// once it has been idle for its window.
func (s *Server) handleSSEView(w http.ResponseWriter, r *http.Request) {
	v, release, err := s.deps.Registry.Attach(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer release()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), streaming.EventFilter{ViewID: v.ID()})
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(eventType string, snap schema.Snapshot) {
		data, err := json.Marshal(s.describe(v, snap, true))
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
		flusher.Flush()
	}
	send("view.snapshot", v.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case <-v.Done():
			// Drain what the view published before closing.
			for {
				select {
				case event, ok := <-ch:
					if !ok {
						return
					}
					send(event.EventType, event.Snapshot)
				default:
					return
				}
			}
		case event, ok := <-ch:
			if !ok {
				return
			}
			send(event.EventType, event.Snapshot)
			if event.EventType == schema.EventViewClosed {
				return
			}
		}
	}
}
