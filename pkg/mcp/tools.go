package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/patternlab/internal/diagram"
	"github.com/rendis/patternlab/pkg/schema"
)

// handleTopics lists topic summaries, optionally filtered with jq.
func (s *Server) handleTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := req.GetString("filter", "")
	topics, err := s.Catalog().Query(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{
		"topics": topics,
		"count":  len(topics),
	})
}

// handleRender draws one frame in the requested format.
func (s *Server) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topicID, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError("topic is required"), nil
	}
	mode := schema.DiagramMode(req.GetString("mode", ""))
	step := req.GetInt("step", 0)
	format := req.GetString("format", "ascii")

	scene, err := s.Catalog().Scene(ctx, topicID, mode, step)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scene failed: %v", err)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(scene)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(scene)), nil
	case "svg":
		var buf bytes.Buffer
		if err := diagram.RenderSVG(&buf, scene); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("svg render failed: %v", err)), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	case "png":
		var buf bytes.Buffer
		if err := diagram.RenderPNG(&buf, scene); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("png render failed: %v", err)), nil
		}
		title := fmt.Sprintf("%s: %s (%s)", scene.Title, scene.ModeTitle, scene.Label())
		return mcp.NewToolResultImage(title, base64.StdEncoding.EncodeToString(buf.Bytes()), "image/png"), nil
	default:
		return mcp.NewToolResultError("format must be svg, mermaid, ascii, or png"), nil
	}
}

// walkthroughStep is one caption of a walkthrough.
type walkthroughStep struct {
	Step    int    `json:"step"`
	Label   string `json:"label"`
	Caption string `json:"caption"`
}

// handleWalkthrough returns a mode's captions in order.
func (s *Server) handleWalkthrough(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topicID, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError("topic is required"), nil
	}
	topic, err := s.Catalog().Topic(topicID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := schema.DiagramMode(req.GetString("mode", ""))
	if mode == "" {
		mode = topic.DefaultMode()
	}
	def, ok := topic.Mode(mode)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("mode %q not found in topic %q", mode, topicID)), nil
	}

	steps := make([]walkthroughStep, 0, def.Steps())
	for i, c := range def.Captions {
		snap := schema.Snapshot{Step: i, TotalSteps: def.Steps()}
		steps = append(steps, walkthroughStep{Step: i, Label: snap.Label(), Caption: c})
	}
	return marshalResult(map[string]any{
		"topic": topic.ID,
		"mode":  def.ID,
		"title": def.Title,
		"steps": steps,
	})
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
