// Package site serves the patternlab website: topic pages, stateless
// diagram renders and the live view API with its SSE and websocket streams.
package site

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/internal/streaming"
)

//go:embed templates static
var content embed.FS

// Deps holds the dependencies for the site server.
type Deps struct {
	Catalog  *catalog.Catalog
	Registry *engine.Registry
	Hub      streaming.EventHub
	Cadence  cron.Schedule
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Server serves the website and view API.
type Server struct {
	deps    Deps
	catalog atomic.Pointer[catalog.Catalog]
	pages   map[string]*template.Template
}

// NewServer creates a Server with parsed templates.
func NewServer(deps Deps) (*Server, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("site: catalog is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Hub == nil {
		deps.Hub = streaming.NewMemoryHub()
	}
	if deps.Registry == nil {
		deps.Registry = engine.NewRegistry(engine.DefaultMaxViews, deps.Logger)
	}
	if deps.Cadence == nil {
		deps.Cadence = scheduler.Every(scheduler.DefaultCadence)
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	funcMap := template.FuncMap{
		"markdown": markdown,
		"safeHTML": safeHTML,
		"percent":  percent,
	}

	base, err := template.New("").Funcs(funcMap).ParseFS(content, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("site: parse base template: %w", err)
	}

	// Each page clones the shared set so that its {{define "content"}}
	// doesn't collide with others.
	pageFiles := []string{"index.html", "topic.html"}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, pf := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("site: clone base template: %w", err)
		}
		if pages[pf], err = clone.ParseFS(content, "templates/"+pf); err != nil {
			return nil, fmt.Errorf("site: parse %s: %w", pf, err)
		}
	}

	s := &Server{deps: deps, pages: pages}
	s.catalog.Store(deps.Catalog)
	return s, nil
}

// SetCatalog swaps the catalog used for new requests. Views already mounted
// keep the configuration they were mounted with.
func (s *Server) SetCatalog(c *catalog.Catalog) {
	s.catalog.Store(c)
}

// Catalog returns the catalog currently in service.
func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog.Load()
}

// Handler returns the HTTP handler for every site route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	staticFS, _ := fs.Sub(content, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Pages.
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /topics/{id}", s.handleTopic)

	// Stateless renders.
	mux.HandleFunc("GET /topics/{id}/diagram.svg", s.handleDiagramSVG)
	mux.HandleFunc("GET /topics/{id}/diagram.png", s.handleDiagramPNG)
	mux.HandleFunc("GET /topics/{id}/diagram.mmd", s.handleDiagramMermaid)
	mux.HandleFunc("GET /topics/{id}/topology.png", s.handleTopology)

	// Catalog API.
	mux.HandleFunc("GET /api/topics", s.handleListTopics)
	mux.HandleFunc("GET /api/topics/{id}", s.handleGetTopic)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// View API.
	mux.HandleFunc("POST /api/views", s.handleMountView)
	mux.HandleFunc("GET /api/views/{id}", s.handleGetView)
	mux.HandleFunc("POST /api/views/{id}/next", s.handleNext)
	mux.HandleFunc("POST /api/views/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/views/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /api/views/{id}/mode", s.handleSetMode)
	mux.HandleFunc("POST /api/views/{id}/close", s.handleCloseView)
	mux.HandleFunc("DELETE /api/views/{id}", s.handleCloseView)

	// Streams.
	mux.HandleFunc("GET /sse/views/{id}", s.handleSSEView)
	mux.HandleFunc("GET /ws/views", s.handleWebSocket)

	return accessLog(s.deps.Logger, mux)
}

// renderPage executes a page template by name.
func (s *Server) renderPage(w http.ResponseWriter, page string, data any) {
	tmpl, ok := s.pages[page]
	if !ok {
		s.deps.Logger.Error("template not found", "page", page)
		http.Error(w, fmt.Sprintf("template %q not found", page), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.deps.Logger.Error("template render error", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
