// Package mcp exposes the topic catalog to agents over the Model Context
// Protocol: listing topics, rendering any frame and reading a mode's
// walkthrough.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/patternlab/internal/catalog"
)

// Deps holds the dependencies for creating a Server.
type Deps struct {
	Catalog *catalog.Catalog
	Version string
	Logger  *slog.Logger
}

// Server wraps an MCP server with patternlab tool handlers.
type Server struct {
	catalog   atomic.Pointer[catalog.Catalog]
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all tools registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{logger: logger}
	s.catalog.Store(deps.Catalog)

	mcpSrv := server.NewMCPServer(
		"patternlab",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("patternlab teaches distributed-systems patterns with stepped diagrams. Use patternlab.topics to list topics, patternlab.walkthrough to read a mode's captions in order, and patternlab.render to draw any step as SVG, Mermaid or ASCII."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Catalog returns the catalog currently served.
func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog.Load()
}

// SetCatalog swaps the served catalog and tells connected clients.
func (s *Server) SetCatalog(c *catalog.Catalog) {
	s.catalog.Store(c)
	s.mcpServer.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  "info",
		"logger": "patternlab",
		"data":   map[string]any{"event": "catalog.reloaded", "topics": c.Len()},
	})
	s.logger.Info("mcp catalog reloaded", slog.Int("topics", c.Len()))
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: topicsTool(), Handler: s.handleTopics},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: walkthroughTool(), Handler: s.handleWalkthrough},
	}
}

// --- Tool definitions ---

func topicsTool() mcp.Tool {
	return mcp.NewTool("patternlab.topics",
		mcp.WithDescription("List the pattern topics with their modes and step counts"),
		mcp.WithString("filter", mcp.Description(`Optional jq filter over each topic summary, e.g. any(.modes[]; .steps > 4)`)),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("patternlab.render",
		mcp.WithDescription("Render one step of a topic diagram"),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic ID")),
		mcp.WithString("mode", mcp.Description("Mode ID (default: the topic's first mode)")),
		mcp.WithNumber("step", mcp.Description("Zero-based step (default: 0)")),
		mcp.WithString("format",
			mcp.Enum("svg", "mermaid", "ascii", "png"),
			mcp.Description("Output format (default: ascii); png is base64-encoded"),
		),
	)
}

func walkthroughTool() mcp.Tool {
	return mcp.NewTool("patternlab.walkthrough",
		mcp.WithDescription("Read every caption of a topic mode in step order"),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic ID")),
		mcp.WithString("mode", mcp.Description("Mode ID (default: the topic's first mode)")),
	)
}
