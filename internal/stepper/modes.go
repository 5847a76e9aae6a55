package stepper

import (
	"github.com/rendis/patternlab/pkg/schema"
)

// ModeSpec pairs a mode with its step count.
type ModeSpec struct {
	Mode  schema.DiagramMode `json:"mode"`
	Steps int                `json:"steps"`
}

// ModeTable is the immutable mode -> step count lookup of one diagram.
// The first mode is the default.
type ModeTable struct {
	order []schema.DiagramMode
	steps map[schema.DiagramMode]int
}

// NewModeTable validates specs and builds a table. Every mode needs at
// least one step and modes must be unique.
func NewModeTable(specs []ModeSpec) (ModeTable, error) {
	if len(specs) == 0 {
		return ModeTable{}, schema.NewError(schema.ErrCodeValidation, "at least one mode is required")
	}
	t := ModeTable{
		order: make([]schema.DiagramMode, 0, len(specs)),
		steps: make(map[schema.DiagramMode]int, len(specs)),
	}
	for i, s := range specs {
		if s.Mode == "" {
			return ModeTable{}, schema.NewErrorf(schema.ErrCodeValidation, "mode %d has an empty name", i)
		}
		if s.Steps < 1 {
			return ModeTable{}, schema.NewErrorf(schema.ErrCodeValidation,
				"mode %q needs at least one step, got %d", s.Mode, s.Steps)
		}
		if _, dup := t.steps[s.Mode]; dup {
			return ModeTable{}, schema.NewErrorf(schema.ErrCodeValidation, "duplicate mode %q", s.Mode)
		}
		t.order = append(t.order, s.Mode)
		t.steps[s.Mode] = s.Steps
	}
	return t, nil
}

// TotalSteps returns the step count of mode, or 0 if the mode is unknown.
func (t ModeTable) TotalSteps(mode schema.DiagramMode) int {
	return t.steps[mode]
}

// Has reports whether mode belongs to the table.
func (t ModeTable) Has(mode schema.DiagramMode) bool {
	_, ok := t.steps[mode]
	return ok
}

// Default returns the first mode.
func (t ModeTable) Default() schema.DiagramMode {
	if len(t.order) == 0 {
		return ""
	}
	return t.order[0]
}

// Modes returns the modes in declaration order.
func (t ModeTable) Modes() []schema.DiagramMode {
	out := make([]schema.DiagramMode, len(t.order))
	copy(out, t.order)
	return out
}

// After returns the mode following mode, cycling back to the first.
func (t ModeTable) After(mode schema.DiagramMode) schema.DiagramMode {
	for i, m := range t.order {
		if m == mode {
			return t.order[(i+1)%len(t.order)]
		}
	}
	return t.Default()
}
