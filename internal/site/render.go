package site

import (
	"bytes"
	"net/http"

	"github.com/rendis/patternlab/internal/diagram"
	"github.com/rendis/patternlab/pkg/schema"
)

// sceneFromQuery builds the scene addressed by {id}, ?mode= and ?step=.
func (s *Server) sceneFromQuery(r *http.Request) (*diagram.Scene, error) {
	step, err := queryInt(r, "step", 0)
	if err != nil {
		return nil, err
	}
	mode := schema.DiagramMode(r.URL.Query().Get("mode"))
	return s.Catalog().Scene(r.Context(), r.PathValue("id"), mode, step)
}

func (s *Server) handleDiagramSVG(w http.ResponseWriter, r *http.Request) {
	scene, err := s.sceneFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := diagram.RenderSVG(&buf, scene); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeRender, "render svg").WithCause(err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(buf.Bytes())
}

func (s *Server) handleDiagramPNG(w http.ResponseWriter, r *http.Request) {
	scene, err := s.sceneFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := diagram.RenderPNG(&buf, scene); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeRender, "render png").WithCause(err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) handleDiagramMermaid(w http.ResponseWriter, r *http.Request) {
	scene, err := s.sceneFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(diagram.RenderMermaid(scene)))
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	topic, err := s.Catalog().Topic(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	mode := schema.DiagramMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = topic.DefaultMode()
	}
	data, err := diagram.RenderTopology(r.Context(), topic, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}
