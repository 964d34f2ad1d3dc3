package tick

import (
	"math"
	"time"
)

const foreverTicks Ticks = -1

// Timeout is the normalized wait bound accepted by blocking calls. The zero value
// is NoWait.
type Timeout struct {
	ticks  Ticks
	period time.Duration
}

var (
	// Forever waits without bound.
	Forever = Timeout{ticks: foreverTicks}
	// NoWait never suspends the caller.
	NoWait = Timeout{}
)

// IsForever reports whether the timeout never expires.
func (t Timeout) IsForever() bool { return t.ticks == foreverTicks }

// IsNoWait reports whether the timeout forbids suspension.
func (t Timeout) IsNoWait() bool { return t.ticks == 0 }

// Ticks returns the tick count, or -1 for Forever.
func (t Timeout) Ticks() Ticks { return t.ticks }

// Duration returns the host-timer duration for the timeout. Forever maps to the
// largest representable duration.
func (t Timeout) Duration() time.Duration {
	switch {
	case t.IsForever():
		return time.Duration(math.MaxInt64)
	case t.ticks == 0:
		return 0
	}
	period := t.period
	if period <= 0 {
		period = DefaultPeriod
	}
	if int64(t.ticks) > math.MaxInt64/int64(period) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t.ticks) * period
}

func (t Timeout) String() string {
	switch {
	case t.IsForever():
		return "forever"
	case t.IsNoWait():
		return "no-wait"
	default:
		return t.Duration().String()
	}
}
