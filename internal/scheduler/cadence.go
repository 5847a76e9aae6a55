package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/patternlab/pkg/schema"
)

// DefaultCadence is the auto-advance period used when no tick is configured.
const DefaultCadence = 1500 * time.Millisecond

// fixedCadence is a constant-delay schedule. cron.Every rounds to whole
// seconds, which is too coarse for a 1.5s beat.
type fixedCadence struct {
	period time.Duration
}

func (c fixedCadence) Next(t time.Time) time.Time {
	return t.Add(c.period)
}

func (c fixedCadence) String() string {
	return c.period.String()
}

// Every returns a cadence firing every d, with millisecond precision.
// Non-positive durations fall back to DefaultCadence.
func Every(d time.Duration) cron.Schedule {
	d = d.Round(time.Millisecond)
	if d <= 0 {
		d = DefaultCadence
	}
	return fixedCadence{period: d}
}

// ParseCadence parses a tick specification. Accepted forms:
//
//	1500ms, 2s           Go durations
//	@every 1500ms        cron descriptor with a duration
//	*/2 * * * *          standard five-field cron spec
//	@hourly, @daily ...  other cron descriptors
//
// An empty spec yields DefaultCadence.
func ParseCadence(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Every(DefaultCadence), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return durationCadence(spec, d)
	}

	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "invalid tick %q", spec).WithCause(err)
		}
		return durationCadence(spec, d)
	}

	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "invalid tick %q", spec).WithCause(err)
	}
	return sched, nil
}

func durationCadence(spec string, d time.Duration) (cron.Schedule, error) {
	if d < time.Millisecond {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "tick %q must be at least 1ms", spec)
	}
	return Every(d), nil
}

// Describe renders a cadence for logs.
func Describe(c cron.Schedule) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", c)
}
