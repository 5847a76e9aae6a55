package validation

import (
	"fmt"

	"github.com/rendis/patternlab/internal/expressions"
	"github.com/rendis/patternlab/pkg/schema"
)

// validateSemantic checks what the JSON Schema cannot express: unique mode
// and node IDs, link/token endpoints referencing declared nodes, geometry
// fitting the canvas, and predicates that compile.
func validateSemantic(def *schema.TopicDefinition, checker expressions.Checker) *schema.ValidationResult {
	result := &schema.ValidationResult{Topic: def.ID}

	modes := make(map[schema.DiagramMode]bool, len(def.Modes))
	for i := range def.Modes {
		m := &def.Modes[i]
		path := fmt.Sprintf("modes[%d]", i)
		if modes[m.ID] {
			result.AddErrorf(path+".id", schema.ErrCodeValidation, "duplicate mode id %q", m.ID)
		}
		modes[m.ID] = true
		validateModeSemantic(def, m, path, checker, result)
	}

	return result
}

func validateModeSemantic(def *schema.TopicDefinition, m *schema.ModeDefinition, path string, checker expressions.Checker, result *schema.ValidationResult) {
	nodes := make(map[string]bool, len(m.Nodes))
	for j, n := range m.Nodes {
		npath := fmt.Sprintf("%s.nodes[%d]", path, j)
		if nodes[n.ID] {
			result.AddErrorf(npath+".id", schema.ErrCodeValidation, "duplicate node id %q", n.ID)
		}
		nodes[n.ID] = true

		if def.Canvas.Width > 0 && n.X+n.W > def.Canvas.Width {
			result.AddWarning(npath, schema.ErrCodeValidation,
				fmt.Sprintf("node %q extends past the canvas width %d", n.ID, def.Canvas.Width))
		}
		if def.Canvas.Height > 0 && n.Y+n.H > def.Canvas.Height {
			result.AddWarning(npath, schema.ErrCodeValidation,
				fmt.Sprintf("node %q extends past the canvas height %d", n.ID, def.Canvas.Height))
		}
		checkPredicate(checker, npath+".when", n.When, result)
		checkPredicate(checker, npath+".active", n.Active, result)
	}

	for j, l := range m.Links {
		lpath := fmt.Sprintf("%s.links[%d]", path, j)
		checkEndpoint(nodes, lpath+".from", l.From, result)
		checkEndpoint(nodes, lpath+".to", l.To, result)
		if l.From == l.To {
			result.AddErrorf(lpath, schema.ErrCodeValidation, "link from %q to itself", l.From)
		}
		checkPredicate(checker, lpath+".when", l.When, result)
		checkPredicate(checker, lpath+".active", l.Active, result)
	}

	for j, tk := range m.Tokens {
		tpath := fmt.Sprintf("%s.tokens[%d]", path, j)
		checkEndpoint(nodes, tpath+".from", tk.From, result)
		checkEndpoint(nodes, tpath+".to", tk.To, result)
		checkPredicate(checker, tpath+".when", tk.When, result)
	}

	for j, n := range m.Notes {
		checkPredicate(checker, fmt.Sprintf("%s.notes[%d].when", path, j), n.When, result)
	}
}

func checkEndpoint(nodes map[string]bool, path, id string, result *schema.ValidationResult) {
	if !nodes[id] {
		result.AddErrorf(path, schema.ErrCodeValidation, "references non-existent node %q", id)
	}
}

func checkPredicate(checker expressions.Checker, path, expression string, result *schema.ValidationResult) {
	if expression == "" || checker == nil {
		return
	}
	if err := checker.Check(expression); err != nil {
		result.AddErrorf(path, schema.ErrCodeExpression, "invalid predicate %q: %s", expression, messageOf(err))
	}
}

func messageOf(err error) string {
	if pe, ok := err.(*schema.PatternError); ok {
		return pe.Message
	}
	return err.Error()
}
