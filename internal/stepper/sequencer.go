// Package stepper implements the step sequencer: the pure state machine
// behind every interactive diagram. A Sequencer holds the mode, the step
// index and the playback state and knows nothing about timers or
// rendering; it is not safe for concurrent use and is meant to be owned by
// a single event loop.
package stepper

import (
	"github.com/rendis/patternlab/pkg/schema"
)

// Sequencer is the single source of truth for where a diagram is in its
// animation.
type Sequencer struct {
	table ModeTable
	mode  schema.DiagramMode
	step  int
	state PlaybackState
}

// New creates a Sequencer paused at step 0 of the table's default mode.
func New(table ModeTable) *Sequencer {
	return &Sequencer{
		table: table,
		mode:  table.Default(),
		state: Paused,
	}
}

// NextStep advances the step, wrapping to 0 after the last one. The step
// count is read from the current mode on every call.
func (s *Sequencer) NextStep() Transition {
	total := s.table.TotalSteps(s.mode)
	if total > 0 {
		s.step = (s.step + 1) % total
	}
	return s.apply(ActionNext)
}

// SetMode switches mode, returning to step 0 and pausing. Selecting the
// current mode still resets.
func (s *Sequencer) SetMode(mode schema.DiagramMode) (Transition, error) {
	if !s.table.Has(mode) {
		return Transition{}, schema.NewErrorf(schema.ErrCodeValidation, "unknown mode %q", mode).
			WithDetails(map[string]any{"modes": s.table.Modes()})
	}
	s.mode = mode
	s.step = 0
	return s.apply(ActionSetMode), nil
}

// TogglePlay flips between Paused and Playing. It never advances the step.
func (s *Sequencer) TogglePlay() Transition {
	return s.apply(ActionToggle)
}

// Reset returns to step 0 and pauses, keeping the mode.
func (s *Sequencer) Reset() Transition {
	s.step = 0
	return s.apply(ActionReset)
}

func (s *Sequencer) apply(a Action) Transition {
	from := s.state
	s.state = nextState(from, a)
	return Transition{Action: a, From: from, To: s.state}
}

// Mode returns the current mode.
func (s *Sequencer) Mode() schema.DiagramMode { return s.mode }

// Step returns the current step index.
func (s *Sequencer) Step() int { return s.step }

// TotalSteps returns the step count of the current mode.
func (s *Sequencer) TotalSteps() int { return s.table.TotalSteps(s.mode) }

// IsPlaying reports whether the sequencer is in the Playing state.
func (s *Sequencer) IsPlaying() bool { return s.state == Playing }

// State returns the playback state.
func (s *Sequencer) State() PlaybackState { return s.state }

// Table returns the sequencer's mode table.
func (s *Sequencer) Table() ModeTable { return s.table }

// Snapshot returns the four observable fields.
func (s *Sequencer) Snapshot() schema.Snapshot {
	return schema.Snapshot{
		Mode:       s.mode,
		Step:       s.step,
		TotalSteps: s.TotalSteps(),
		IsPlaying:  s.IsPlaying(),
	}
}
