package site

import (
	"context"
	"net/http"

	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/pkg/schema"
)

// viewResponse is the JSON shape of a view's state.
type viewResponse struct {
	ID       string          `json:"id"`
	Snapshot schema.Snapshot `json:"snapshot"`
	Label    string          `json:"label"`
	Progress float64         `json:"progress"`
	Caption  string          `json:"caption"`
	SVG      string          `json:"svg,omitempty"`
}

func (s *Server) describe(v *engine.View, snap schema.Snapshot, withSVG bool) viewResponse {
	resp := viewResponse{
		ID:       v.ID(),
		Snapshot: snap,
		Label:    snap.Label(),
		Progress: snap.Progress(),
		Caption:  s.caption(snap),
	}
	if withSVG {
		if svg, err := v.RenderSnapshot(snap); err == nil {
			resp.SVG = svg
		}
	}
	return resp
}

// caption looks up the caption of a snapshot's current step.
func (s *Server) caption(snap schema.Snapshot) string {
	captions, err := s.Catalog().Walkthrough(snap.Topic, snap.Mode)
	if err != nil || snap.Step < 0 || snap.Step >= len(captions) {
		return ""
	}
	return captions[snap.Step]
}

// mountView creates an engine for the topic and mounts a view in the
// registry.
func (s *Server) mountView(ctx context.Context, topic string) (*engine.View, error) {
	cfg, err := s.Catalog().Config(topic, s.deps.Cadence)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(cfg,
		engine.WithHub(s.deps.Hub),
		engine.WithLogger(s.deps.Logger),
		engine.WithClock(s.deps.Clock),
	)
	if err != nil {
		return nil, err
	}
	return s.deps.Registry.Mount(ctx, eng)
}

// handleMountView mounts a view for {"topic", "mode"}.
func (s *Server) handleMountView(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Topic string             `json:"topic"`
		Mode  schema.DiagramMode `json:"mode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Topic == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "topic is required"))
		return
	}

	v, err := s.mountView(r.Context(), body.Topic)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := v.Snapshot()
	if body.Mode != "" && body.Mode != snap.Mode {
		if snap, err = v.SetMode(r.Context(), body.Mode); err != nil {
			v.Close()
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, s.describe(v, snap, true))
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	v.Touch()
	writeJSON(w, http.StatusOK, s.describe(v, v.Snapshot(), true))
}

// viewCommand resolves {id} and applies cmd to the view.
func (s *Server) viewCommand(w http.ResponseWriter, r *http.Request, cmd func(context.Context, *engine.View) (schema.Snapshot, error)) {
	v, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := cmd(r.Context(), v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.describe(v, snap, true))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.viewCommand(w, r, func(ctx context.Context, v *engine.View) (schema.Snapshot, error) {
		return v.NextStep(ctx)
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.viewCommand(w, r, func(ctx context.Context, v *engine.View) (schema.Snapshot, error) {
		return v.TogglePlay(ctx)
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.viewCommand(w, r, func(ctx context.Context, v *engine.View) (schema.Snapshot, error) {
		return v.Reset(ctx)
	})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode schema.DiagramMode `json:"mode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.viewCommand(w, r, func(ctx context.Context, v *engine.View) (schema.Snapshot, error) {
		return v.SetMode(ctx, body.Mode)
	})
}

// handleCloseView tears a view down. It serves both DELETE and the POST
// beacon browsers send on page unload.
func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Registry.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.Catalog().Query(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "count": len(topics)})
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := s.Catalog().Topic(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"topics":        s.Catalog().Len(),
		"views":         s.deps.Registry.Len(),
		"active_timers": scheduler.ActiveTimers(),
	})
}
