package schema

import "fmt"

// DiagramMode names one illustrative variant of a topic's diagram
// (e.g. "orchestration" or "choreography").
type DiagramMode string

// Snapshot is the read-only state of a mounted diagram view.
type Snapshot struct {
	ViewID     string      `json:"view_id,omitempty"`
	Topic      string      `json:"topic,omitempty"`
	Mode       DiagramMode `json:"mode"`
	Step       int         `json:"step"`
	TotalSteps int         `json:"total_steps"`
	IsPlaying  bool        `json:"is_playing"`
	Seq        uint64      `json:"seq"`
}

// Progress returns the fraction of the sequence reached, (step+1)/total.
func (s Snapshot) Progress() float64 {
	if s.TotalSteps < 1 {
		return 0
	}
	return float64(s.Step+1) / float64(s.TotalSteps)
}

// Label returns the one-based "Step n / N" label shown beside the controls.
func (s Snapshot) Label() string {
	return fmt.Sprintf("Step %d / %d", s.Step+1, s.TotalSteps)
}
