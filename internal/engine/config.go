package engine

import (
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/rendis/patternlab/internal/stepper"
	"github.com/rendis/patternlab/pkg/schema"
)

// Renderer turns a snapshot into a presentation (SVG markup, ASCII art...).
type Renderer interface {
	Render(snap schema.Snapshot) (string, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(snap schema.Snapshot) (string, error)

// Render calls f(snap).
func (f RenderFunc) Render(snap schema.Snapshot) (string, error) {
	return f(snap)
}

// Config parameterizes the engine for one diagram.
type Config struct {
	Topic   string
	Modes   []stepper.ModeSpec
	Cadence cron.Schedule
	Render  Renderer
}

// Validate checks the mode list and cadence.
func (c Config) Validate() error {
	if _, err := stepper.NewModeTable(c.Modes); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid engine config: %s", messageOf(err)).
			WithTopic(c.Topic).WithCause(err)
	}
	if c.Cadence == nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid engine config: cadence is required").
			WithTopic(c.Topic)
	}
	return nil
}

func messageOf(err error) string {
	var pe *schema.PatternError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
