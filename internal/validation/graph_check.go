package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/patternlab/pkg/schema"
)

// validateGraph inspects each mode's node graph, where links and tokens are
// edges. It warns about nodes nothing connects to when the mode has edges
// at all, and about links declared twice.
func validateGraph(def *schema.TopicDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{Topic: def.ID}

	for i := range def.Modes {
		m := &def.Modes[i]
		if len(m.Links) == 0 && len(m.Tokens) == 0 {
			continue
		}

		degree := make(map[string]int, len(m.Nodes))
		for _, n := range m.Nodes {
			degree[n.ID] = 0
		}

		seen := make(map[[2]string]bool, len(m.Links))
		for j, l := range m.Links {
			key := [2]string{l.From, l.To}
			if seen[key] {
				result.AddWarning(fmt.Sprintf("modes[%d].links[%d]", i, j), schema.ErrCodeValidation,
					fmt.Sprintf("link %s -> %s declared twice", l.From, l.To))
			}
			seen[key] = true
			degree[l.From]++
			degree[l.To]++
		}
		for _, tk := range m.Tokens {
			degree[tk.From]++
			degree[tk.To]++
		}

		isolated := make([]string, 0)
		for id, d := range degree {
			if d == 0 {
				isolated = append(isolated, id)
			}
		}
		// Sort for deterministic output.
		sort.Strings(isolated)
		for _, id := range isolated {
			result.AddWarning(fmt.Sprintf("modes[%d].nodes[%s]", i, id), schema.ErrCodeValidation,
				fmt.Sprintf("node %q has no links or tokens in mode %q", id, m.ID))
		}
	}

	return result
}
