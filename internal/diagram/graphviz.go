package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/patternlab/pkg/schema"
)

// RenderTopology renders every node and link of a mode, ignoring step
// predicates, as a graphviz PNG. It shows the static shape of the pattern.
func RenderTopology(ctx context.Context, topic *schema.TopicDefinition, mode schema.DiagramMode) ([]byte, error) {
	m, ok := topic.Mode(mode)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown mode %q", mode).WithTopic(topic.ID)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	graph.SetLabel(fmt.Sprintf("%s: %s", topic.Title, m.Title))

	accent := firstNonEmpty(m.Color, topic.Color, defaultAccent)
	gvNodes := make(map[string]*cgraph.Node, len(m.Nodes))
	for _, n := range m.Nodes {
		if _, dup := gvNodes[n.ID]; dup {
			continue
		}
		gvNode, nErr := graph.CreateNodeByName(n.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", n.ID, nErr)
		}
		gvNode.SetLabel(n.Label)
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor(firstNonEmpty(n.Color, accent))
		gvNode.SetFontColor("white")
		gvNodes[n.ID] = gvNode
	}

	for _, l := range m.Links {
		fromGV, toGV := gvNodes[l.From], gvNodes[l.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr != nil {
			continue
		}
		if l.Label != "" {
			e.SetLabel(l.Label)
		}
		if l.Dashed {
			e.SetStyle(cgraph.DashedEdgeStyle)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, "render topology").WithTopic(topic.ID).WithCause(err)
	}
	return buf.Bytes(), nil
}
