package site

import (
	"bytes"
	"net/http"

	"github.com/rendis/patternlab/internal/diagram"
	"github.com/rendis/patternlab/pkg/schema"
)

type pageData struct {
	Title  string
	Active string
}

type indexData struct {
	pageData
	Topics []schema.TopicSummary
}

type modeTab struct {
	ID    schema.DiagramMode
	Label string
	Steps int
}

type topicData struct {
	pageData
	Topic    *schema.TopicDefinition
	Modes    []modeTab
	Mode     schema.DiagramMode
	Caption  string
	Label    string
	Progress float64
	SVG      string
	Topics   []schema.TopicSummary
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "index.html", indexData{
		pageData: pageData{Title: "Architecture Patterns", Active: "home"},
		Topics:   s.Catalog().Summaries(),
	})
}

// handleTopic renders the topic page with the first frame of its default
// mode. The page mounts a live view from the browser.
func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	c := s.Catalog()
	topic, err := c.Topic(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	mode := topic.DefaultMode()
	scene, err := c.Builder().Build(r.Context(), topic, mode, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := diagram.RenderSVG(&buf, scene); err != nil {
		writeError(w, err)
		return
	}

	tabs := make([]modeTab, 0, len(topic.Modes))
	for _, m := range topic.Modes {
		tabs = append(tabs, modeTab{ID: m.ID, Label: m.Label, Steps: m.Steps()})
	}

	s.renderPage(w, "topic.html", topicData{
		pageData: pageData{Title: topic.Title, Active: topic.ID},
		Topic:    topic,
		Modes:    tabs,
		Mode:     mode,
		Caption:  scene.Caption,
		Label:    scene.Label(),
		Progress: float64(scene.Step+1) / float64(scene.Total),
		SVG:      buf.String(),
		Topics:   c.Summaries(),
	})
}
