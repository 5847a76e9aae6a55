package site

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/streaming"
	"github.com/rendis/patternlab/pkg/schema"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsCommand is a client message on the view websocket.
type wsCommand struct {
	Action string             `json:"action"`
	Mode   schema.DiagramMode `json:"mode,omitempty"`
}

// wsMessage is a server message on the view websocket.
type wsMessage struct {
	Event string        `json:"event,omitempty"`
	View  *viewResponse `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
	Code  string        `json:"code,omitempty"`
}

// handleWebSocket mounts a view of ?topic= for the lifetime of the socket.
// The client sends commands ({"action":"next|toggle|reset|mode|close"}) and
// receives every snapshot. Closing the socket tears the view down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if _, err := s.Catalog().Topic(topic); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	v, err := s.mountView(ctx, topic)
	if err != nil {
		s.writeWS(conn, errorMessage(err))
		return
	}
	defer v.Close()

	if _, release, err := s.deps.Registry.Attach(v.ID()); err == nil {
		defer release()
	}

	ch, unsubscribe, err := s.deps.Hub.Subscribe(ctx, streaming.EventFilter{ViewID: v.ID()})
	if err != nil {
		s.writeWS(conn, errorMessage(err))
		return
	}
	defer unsubscribe()

	out := make(chan wsMessage, 16)
	go s.readWS(ctx, conn, v, out)

	initial := s.describe(v, v.Snapshot(), true)
	if err := s.writeWS(conn, wsMessage{Event: "view.snapshot", View: &initial}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-out:
			if !ok {
				// Reader finished: the socket is gone or the client asked to close.
				return
			}
			if err := s.writeWS(conn, msg); err != nil {
				return
			}
		case event, ok := <-ch:
			if !ok {
				return
			}
			resp := s.describe(v, event.Snapshot, true)
			if err := s.writeWS(conn, wsMessage{Event: event.EventType, View: &resp}); err != nil {
				return
			}
			if event.EventType == schema.EventViewClosed {
				return
			}
		}
	}
}

// readWS applies client commands until the socket fails. Command errors are
// sent back on out; successful transitions arrive through the hub.
func (s *Server) readWS(ctx context.Context, conn *websocket.Conn, v *engine.View, out chan<- wsMessage) {
	defer close(out)
	emit := func(err error) bool {
		select {
		case out <- errorMessage(err):
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			if !emit(schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %s", err.Error())) {
				return
			}
			continue
		}

		switch cmd.Action {
		case "next":
			_, err = v.NextStep(ctx)
		case "toggle":
			_, err = v.TogglePlay(ctx)
		case "reset":
			_, err = v.Reset(ctx)
		case "mode":
			_, err = v.SetMode(ctx, cmd.Mode)
		case "close":
			v.Close()
			return
		default:
			err = schema.NewErrorf(schema.ErrCodeValidation, "unknown action %q", cmd.Action)
		}
		if err != nil && !emit(err) {
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func errorMessage(err error) wsMessage {
	return wsMessage{Error: err.Error(), Code: schema.CodeOf(err)}
}
