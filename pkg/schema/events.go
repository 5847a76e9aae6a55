package schema

// Event types published for every applied view transition.
const (
	EventViewMounted     = "view.mounted"
	EventViewAdvanced    = "view.advanced"
	EventViewModeChanged = "view.mode_changed"
	EventViewPlaying     = "view.playing"
	EventViewPaused      = "view.paused"
	EventViewReset       = "view.reset"
	EventViewClosed      = "view.closed"
)

// Sources of a transition.
const (
	SourceManual = "manual"
	SourceTimer  = "timer"
)
