// Package scheduler provides the auto-advance timer that drives a playing
// diagram. An AutoAdvance is owned by exactly one event loop: it never runs
// callbacks itself, the loop selects on C() and reports each tick back
// through Fired.
package scheduler

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

var activeTimers atomic.Int64

// ActiveTimers returns the number of armed auto-advance timers in the process.
func ActiveTimers() int64 {
	return activeTimers.Load()
}

// AutoAdvance arms at most one timer at a time on a cron cadence.
// It is not safe for concurrent use.
type AutoAdvance struct {
	clock   clockwork.Clock
	cadence cron.Schedule
	logger  *slog.Logger

	timer clockwork.Timer
	next  time.Time
}

// New creates an idle AutoAdvance. A nil clock uses the real clock, a nil
// cadence uses DefaultCadence.
func New(clock clockwork.Clock, cadence cron.Schedule, logger *slog.Logger) *AutoAdvance {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cadence == nil {
		cadence = Every(DefaultCadence)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoAdvance{clock: clock, cadence: cadence, logger: logger}
}

// Start arms the first tick at cadence.Next(now). Starting an active
// scheduler is a no-op and returns false.
func (a *AutoAdvance) Start(now time.Time) bool {
	if a.timer != nil {
		return false
	}
	a.arm(now)
	activeTimers.Add(1)
	a.logger.Debug("auto-advance armed", slog.Time("next", a.next), slog.String("cadence", Describe(a.cadence)))
	return true
}

// Stop disarms the timer. A tick already sitting in the old channel is
// never observed because C() returns nil afterwards and a later Start
// allocates a fresh timer.
func (a *AutoAdvance) Stop() bool {
	if a.timer == nil {
		return false
	}
	a.timer.Stop()
	a.timer = nil
	a.next = time.Time{}
	activeTimers.Add(-1)
	a.logger.Debug("auto-advance stopped")
	return true
}

// C returns the channel of the armed timer, or nil when idle. A nil
// channel blocks forever in a select.
func (a *AutoAdvance) C() <-chan time.Time {
	if a.timer == nil {
		return nil
	}
	return a.timer.Chan()
}

// Fired re-arms the timer after the tick delivered at was consumed. Ticks
// are not coalesced: if the loop is late the next one fires immediately.
func (a *AutoAdvance) Fired(at time.Time) {
	if a.timer == nil {
		return
	}
	base := a.next
	if base.IsZero() {
		base = at
	}
	a.arm(base)
}

// Active reports whether a timer is armed.
func (a *AutoAdvance) Active() bool {
	return a.timer != nil
}

// Next returns the time of the armed tick, or the zero time when idle.
func (a *AutoAdvance) Next() time.Time {
	return a.next
}

func (a *AutoAdvance) arm(from time.Time) {
	a.next = a.cadence.Next(from)
	delay := a.next.Sub(a.clock.Now())
	if delay < 0 {
		delay = 0
	}
	a.timer = a.clock.NewTimer(delay)
}
