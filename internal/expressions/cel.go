package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/patternlab/pkg/schema"
)

// CELEngine implements the Engine interface using Google's Common Expression
// Language. Topics opt in with `predicates: cel`.
// Thread-safe: compiled programs are cached and reused across goroutines.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a new CEL expression engine with a sandboxed environment.
// The environment exposes the predicate variables:
//   - step:  int    zero-based step index
//   - mode:  string mode name
//   - total: int    step count of the mode
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("step", cel.IntType),
		cel.Variable("mode", cel.StringType),
		cel.Variable("total", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate compiles (or retrieves from cache) a CEL expression and evaluates it
// against the provided data, typically built with PredicateVars.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeExpression, "empty CEL expression")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, buildActivation(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out.Value(), nil
}

// Check compiles expression and requires a boolean result type.
func (e *CELEngine) Check(expression string) error {
	if _, err := e.getOrCompile(expression); err != nil {
		return err
	}
	ast, _ := e.env.Compile(expression)
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return schema.NewErrorf(schema.ErrCodeExpression,
			"CEL predicate %q has type %s, want bool", expression, ast.OutputType()).
			WithDetails(map[string]any{"expression": expression})
	}
	return nil
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL program error for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

// buildActivation fills missing predicate variables with zero values and
// widens ints to the int64 CEL expects.
func buildActivation(data map[string]any) map[string]any {
	activation := map[string]any{
		"step":  int64(0),
		"mode":  "",
		"total": int64(0),
	}
	for k, v := range data {
		switch n := v.(type) {
		case int:
			activation[k] = int64(n)
		case int32:
			activation[k] = int64(n)
		default:
			activation[k] = v
		}
	}
	return activation
}

var (
	_ Engine  = (*CELEngine)(nil)
	_ Checker = (*CELEngine)(nil)
)
