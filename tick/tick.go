// Package tick provides the monotonic tick clock and the timeout representation
// shared by every blocking call in go-rtkernel.
//
// Relative durations are converted to ticks with ceiling rounding so a wait never
// resolves to fewer ticks than requested. Absolute deadlines are converted to the
// ticks remaining at the moment the blocking call begins, clamped to zero once the
// deadline has passed.
package tick

import (
	"fmt"
	"math"
	"time"

	"github.com/aristanetworks/goarista/monotime"
)

// DefaultPeriod is the tick period of the default clock.
const DefaultPeriod = time.Millisecond

// Ticks is a count of clock ticks.
type Ticks int64

// Instant is a point in time expressed as ticks since the clock epoch.
type Instant Ticks

// Add returns the instant t+d.
func (t Instant) Add(d Ticks) Instant { return t + Instant(d) }

// Sub returns the ticks elapsed between u and t.
func (t Instant) Sub(u Instant) Ticks { return Ticks(t - u) }

// Before reports whether t is strictly earlier than u.
func (t Instant) Before(u Instant) bool { return t < u }

// Clock is a steady tick counter backed by the host's monotonic time source.
type Clock struct {
	period time.Duration
	epoch  uint64
	source func() uint64
}

// NewClock creates a clock with the given tick period, starting at tick 0.
func NewClock(period time.Duration) *Clock {
	return NewClockWithSource(period, monotime.Now)
}

// NewClockWithSource creates a clock reading nanoseconds from source. The source
// must be monotonic.
func NewClockWithSource(period time.Duration, source func() uint64) *Clock {
	if period <= 0 {
		panic(fmt.Sprintf("tick: invalid period %v", period))
	}
	return &Clock{
		period: period,
		epoch:  source(),
		source: source,
	}
}

// Period returns the duration of a single tick.
func (c *Clock) Period() time.Duration { return c.period }

// Now returns the current instant.
func (c *Clock) Now() Instant {
	elapsed := c.source() - c.epoch
	return Instant(elapsed / uint64(c.period))
}

// ToTicks converts d to ticks, rounding up. Negative durations yield 0.
func (c *Clock) ToTicks(d time.Duration) Ticks {
	if d <= 0 {
		return 0
	}
	n := d / c.period
	if d%c.period != 0 {
		n++
	}
	return Ticks(n)
}

// ToDuration converts a tick count back to a duration.
func (c *Clock) ToDuration(t Ticks) time.Duration {
	if t <= 0 {
		return 0
	}
	if int64(t) > math.MaxInt64/int64(c.period) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t) * c.period
}

// For converts a relative duration into a timeout.
func (c *Clock) For(d time.Duration) Timeout {
	return Timeout{ticks: c.ToTicks(d), period: c.period}
}

// Ticks wraps a raw tick count into a timeout.
func (c *Clock) Ticks(t Ticks) Timeout {
	if t < 0 {
		t = 0
	}
	return Timeout{ticks: t, period: c.period}
}

// Until converts an absolute deadline into the ticks remaining from now. A deadline
// that has already passed yields NoWait.
func (c *Clock) Until(deadline Instant) Timeout {
	remaining := deadline.Sub(c.Now())
	if remaining < 0 {
		remaining = 0
	}
	return Timeout{ticks: remaining, period: c.period}
}

var defaultClock = NewClock(DefaultPeriod)

// Default returns the process-wide clock.
func Default() *Clock { return defaultClock }

// Now returns the current instant of the default clock.
func Now() Instant { return defaultClock.Now() }

// For converts d into a timeout on the default clock.
func For(d time.Duration) Timeout { return defaultClock.For(d) }

// Until converts deadline into a timeout on the default clock.
func Until(deadline Instant) Timeout { return defaultClock.Until(deadline) }

// Deadline returns the default-clock instant d from now, rounded up.
func Deadline(d time.Duration) Instant {
	return defaultClock.Now().Add(defaultClock.ToTicks(d))
}
