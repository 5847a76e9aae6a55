package diagram

import (
	"context"
	"fmt"

	"github.com/rendis/patternlab/internal/expressions"
	"github.com/rendis/patternlab/pkg/schema"
)

const (
	defaultWidth  = 640
	defaultHeight = 320
	defaultAccent = "#6366f1"
)

// Builder resolves a topic definition at (mode, step) into a Scene. It is
// pure: the same inputs always yield the same scene.
type Builder struct {
	engines *expressions.Set
}

// NewBuilder creates a Builder evaluating predicates with engines.
func NewBuilder(engines *expressions.Set) *Builder {
	return &Builder{engines: engines}
}

// Build constructs the scene of topic at the given mode and zero-based step.
func (b *Builder) Build(ctx context.Context, topic *schema.TopicDefinition, mode schema.DiagramMode, step int) (*Scene, error) {
	m, ok := topic.Mode(mode)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown mode %q", mode).WithTopic(topic.ID)
	}
	total := m.Steps()
	if step < 0 || step >= total {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "step %d out of range [0, %d)", step, total).
			WithTopic(topic.ID)
	}
	eng, err := b.engines.Predicates(topic.Predicates)
	if err != nil {
		return nil, fmt.Errorf("diagram: %w", err)
	}

	ev := &evaluator{ctx: ctx, eng: eng, vars: expressions.PredicateVars(step, mode, total), topic: topic.ID}
	scene := &Scene{
		Topic:     topic.ID,
		Title:     topic.Title,
		Mode:      m.ID,
		ModeLabel: m.Label,
		ModeTitle: m.Title,
		Step:      step,
		Total:     total,
		Caption:   m.Captions[step],
		Accent:    firstNonEmpty(m.Color, topic.Color, defaultAccent),
		Width:     orDefault(topic.Canvas.Width, defaultWidth),
		Height:    orDefault(topic.Canvas.Height, defaultHeight),
	}

	for _, n := range m.Nodes {
		visible, err := ev.eval(n.When)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		active, err := ev.evalDefault(n.Active, false)
		if err != nil {
			return nil, err
		}
		scene.Boxes = append(scene.Boxes, Box{
			ID: n.ID, Label: n.Label,
			X: n.X, Y: n.Y, W: n.W, H: n.H,
			Color:  firstNonEmpty(n.Color, scene.Accent),
			Active: active,
		})
	}

	for _, l := range m.Links {
		from, okFrom := scene.Box(l.From)
		to, okTo := scene.Box(l.To)
		if !okFrom || !okTo {
			continue
		}
		visible, err := ev.eval(l.When)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		active, err := ev.evalDefault(l.Active, false)
		if err != nil {
			return nil, err
		}
		x1, y1, x2, y2 := connect(from, to)
		scene.Lines = append(scene.Lines, Line{
			From: l.From, To: l.To, Label: l.Label,
			Dashed: l.Dashed, Arrow: l.Arrow, Active: active,
			X1: x1, Y1: y1, X2: x2, Y2: y2,
		})
	}

	for i, tk := range m.Tokens {
		from, okFrom := scene.Box(tk.From)
		to, okTo := scene.Box(tk.To)
		if !okFrom || !okTo {
			continue
		}
		visible, err := ev.eval(tk.When)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		x1, y1 := from.Center()
		x2, y2 := to.Center()
		scene.Tokens = append(scene.Tokens, Token{
			ID:   fmt.Sprintf("tok-%d", i),
			From: tk.From, To: tk.To,
			Color: firstNonEmpty(tk.Color, scene.Accent),
			Delay: tk.Delay,
			X1:    x1, Y1: y1, X2: x2, Y2: y2,
		})
	}

	for _, n := range m.Notes {
		visible, err := ev.eval(n.When)
		if err != nil {
			return nil, err
		}
		if visible {
			scene.Notes = append(scene.Notes, Note{Text: n.Text, X: n.X, Y: n.Y, Color: n.Color})
		}
	}

	return scene, nil
}

type evaluator struct {
	ctx   context.Context
	eng   expressions.Engine
	vars  map[string]any
	topic string
}

// eval treats an empty predicate as true.
func (e *evaluator) eval(expression string) (bool, error) {
	return e.evalDefault(expression, true)
}

func (e *evaluator) evalDefault(expression string, def bool) (bool, error) {
	if expression == "" {
		return def, nil
	}
	ok, err := expressions.EvaluateBool(e.ctx, e.eng, expression, e.vars)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExpression, "predicate %q: %s", expression, err.Error()).
			WithTopic(e.topic).WithCause(err)
	}
	return ok, nil
}

// connect returns the segment between two boxes, clipped to their borders.
func connect(from, to Box) (x1, y1, x2, y2 int) {
	fx, fy := from.Center()
	tx, ty := to.Center()
	x1, y1 = clip(from, tx, ty)
	x2, y2 = clip(to, fx, fy)
	return x1, y1, x2, y2
}

// clip returns the point where the ray from b's center toward (px, py)
// leaves b.
func clip(b Box, px, py int) (int, int) {
	cx, cy := b.Center()
	dx, dy := float64(px-cx), float64(py-cy)
	if dx == 0 && dy == 0 {
		return cx, cy
	}
	hw, hh := float64(b.W)/2, float64(b.H)/2
	scale := 1.0
	if dx != 0 {
		scale = hw / abs(dx)
	}
	if dy != 0 {
		if s := hh / abs(dy); dx == 0 || s < scale {
			scale = s
		}
	}
	return cx + int(dx*scale), cy + int(dy*scale)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
