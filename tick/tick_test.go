package tick

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a manually advanced nanosecond source.
type fakeSource struct {
	ns atomic.Uint64
}

func (f *fakeSource) now() uint64            { return f.ns.Load() }
func (f *fakeSource) advance(d time.Duration) { f.ns.Add(uint64(d)) }

func TestClock_ToTicksRoundsUp(t *testing.T) {
	c := NewClock(time.Millisecond)

	tests := []struct {
		name string
		in   time.Duration
		want Ticks
	}{
		{"zero", 0, 0},
		{"negative", -time.Second, 0},
		{"exact", 10 * time.Millisecond, 10},
		{"one nanosecond over", 10*time.Millisecond + 1, 11},
		{"sub tick", time.Microsecond, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ToTicks(tt.in))
		})
	}
}

func TestClock_NowIsMonotonic(t *testing.T) {
	src := &fakeSource{}
	src.ns.Store(5_000_000)
	c := NewClockWithSource(time.Millisecond, src.now)

	assert.Equal(t, Instant(0), c.Now())

	src.advance(1500 * time.Microsecond)
	assert.Equal(t, Instant(1), c.Now())

	src.advance(500 * time.Microsecond)
	assert.Equal(t, Instant(2), c.Now())

	prev := c.Now()
	for range 100 {
		src.advance(137 * time.Microsecond)
		now := c.Now()
		require.False(t, now.Before(prev))
		prev = now
	}
}

func TestClock_UntilClampsElapsedDeadline(t *testing.T) {
	src := &fakeSource{}
	c := NewClockWithSource(time.Millisecond, src.now)

	deadline := c.Now().Add(20)
	src.advance(5 * time.Millisecond)

	remaining := c.Until(deadline)
	assert.Equal(t, Ticks(15), remaining.Ticks())
	assert.False(t, remaining.IsNoWait())

	src.advance(time.Second)
	expired := c.Until(deadline)
	assert.True(t, expired.IsNoWait())
	assert.Equal(t, Ticks(0), expired.Ticks())
	assert.Equal(t, time.Duration(0), expired.Duration())
}

func TestTimeout_Sentinels(t *testing.T) {
	var zero Timeout
	assert.True(t, zero.IsNoWait())
	assert.True(t, NoWait.IsNoWait())
	assert.False(t, NoWait.IsForever())

	assert.True(t, Forever.IsForever())
	assert.False(t, Forever.IsNoWait())
	assert.Equal(t, Ticks(-1), Forever.Ticks())
	assert.Greater(t, Forever.Duration(), 100*365*24*time.Hour)

	assert.Equal(t, "forever", Forever.String())
	assert.Equal(t, "no-wait", NoWait.String())
}

func TestTimeout_DurationNeverShorterThanRequested(t *testing.T) {
	c := NewClock(10 * time.Millisecond)

	for _, d := range []time.Duration{1, time.Millisecond, 15 * time.Millisecond, 99 * time.Millisecond} {
		to := c.For(d)
		assert.GreaterOrEqual(t, to.Duration(), d, "timeout for %v", d)
	}
}

func TestClock_TicksClampsNegative(t *testing.T) {
	c := NewClock(time.Millisecond)
	assert.True(t, c.Ticks(-5).IsNoWait())
	assert.Equal(t, 7*time.Millisecond, c.Ticks(7).Duration())
}

func TestNewClock_InvalidPeriodPanics(t *testing.T) {
	assert.Panics(t, func() { NewClock(0) })
}

func TestDefaultHelpers(t *testing.T) {
	assert.Equal(t, DefaultPeriod, Default().Period())
	assert.Equal(t, Ticks(3), For(2500*time.Microsecond).Ticks())

	deadline := Deadline(time.Hour)
	assert.False(t, Until(deadline).IsNoWait())
	assert.True(t, Until(Now().Add(-10)).IsNoWait())
}
