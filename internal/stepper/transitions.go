package stepper

// PlaybackState is the composite state of a sequencer, parameterized at
// runtime by (mode, step).
type PlaybackState string

const (
	Paused  PlaybackState = "paused"
	Playing PlaybackState = "playing"
)

// Action is a transition trigger.
type Action string

const (
	ActionNext    Action = "next"
	ActionToggle  Action = "toggle"
	ActionSetMode Action = "set_mode"
	ActionReset   Action = "reset"
)

// Transitions is the playback transition table. Every (state, action) pair
// is defined; there is no terminal state.
var Transitions = map[PlaybackState]map[Action]PlaybackState{
	Paused: {
		ActionToggle:  Playing,
		ActionNext:    Paused,
		ActionSetMode: Paused,
		ActionReset:   Paused,
	},
	Playing: {
		ActionToggle:  Paused,
		ActionNext:    Playing,
		ActionSetMode: Paused,
		ActionReset:   Paused,
	},
}

// Transition records one applied action.
type Transition struct {
	Action Action        `json:"action"`
	From   PlaybackState `json:"from"`
	To     PlaybackState `json:"to"`
}

// Started reports whether the transition entered Playing.
func (t Transition) Started() bool {
	return t.From == Paused && t.To == Playing
}

// Stopped reports whether the transition left Playing.
func (t Transition) Stopped() bool {
	return t.From == Playing && t.To == Paused
}

func nextState(from PlaybackState, a Action) PlaybackState {
	if to, ok := Transitions[from][a]; ok {
		return to
	}
	return from
}
