package expressions

import (
	"context"
	"fmt"

	"github.com/rendis/patternlab/pkg/schema"
)

// Engine evaluates expressions against a data map.
// Three implementations: Expr and CEL (diagram predicates), GoJQ (catalog queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Checker is implemented by engines that can validate an expression
// without evaluating it.
type Checker interface {
	Check(expression string) error
}

// PredicateVars builds the environment every diagram predicate sees:
// the zero-based step, the mode name and the mode's step count.
func PredicateVars(step int, mode schema.DiagramMode, total int) map[string]any {
	return map[string]any{
		"step":  step,
		"mode":  string(mode),
		"total": total,
	}
}

// EvaluateBool evaluates a predicate and requires a boolean result. An empty
// expression is true.
func EvaluateBool(ctx context.Context, e Engine, expression string, data map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"%s predicate %q returned %s, want bool", e.Name(), expression, typeName(out)).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}

// Set bundles one engine of each kind.
type Set struct {
	Expr *ExprEngine
	CEL  *CELEngine
	JQ   *GoJQEngine
}

// NewSet creates all engines.
func NewSet() (*Set, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Set{
		Expr: NewExprEngine(),
		CEL:  celEngine,
		JQ:   NewGoJQEngine(),
	}, nil
}

// Predicates returns the engine for a topic's predicate language. The empty
// language selects expr.
func (s *Set) Predicates(lang schema.PredicateLanguage) (Engine, error) {
	switch lang {
	case "", schema.PredicateExpr:
		return s.Expr, nil
	case schema.PredicateCEL:
		return s.CEL, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown predicate language %q", lang)
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
