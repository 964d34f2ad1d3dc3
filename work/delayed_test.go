package work

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/go-rtkernel/tick"
)

func TestDelayed_CancelBeforeDeadlinePreventsRun(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	d := q.NewDelayed("blink", c)

	require.True(t, d.Schedule(tick.For(50*time.Millisecond)))
	time.Sleep(2 * time.Millisecond)
	assert.True(t, d.Cancel())

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(0), c.n.Load())

	require.True(t, d.Schedule(tick.For(10*time.Millisecond)))
	c.waitRun(t)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(1), c.n.Load())
}

func TestDelayed_ScheduleIsNoOpWhileScheduled(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	d := q.NewDelayed("once", c)

	require.True(t, d.Schedule(tick.For(20*time.Millisecond)))
	first := d.Expiration()
	assert.False(t, d.Schedule(tick.For(time.Millisecond)))
	assert.Equal(t, first, d.Expiration(), "a rejected schedule keeps the deadline")

	c.waitRun(t)
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(1), c.n.Load())
}

func TestDelayed_NoWaitSubmitsImmediately(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	d := q.NewDelayed("now", c)

	require.True(t, d.Schedule(tick.NoWait))
	c.waitRun(t)
	assert.Equal(t, int32(1), c.n.Load())
}

func TestDelayed_ForeverIsRejected(t *testing.T) {
	q, _ := newTestQueue(t)
	d := q.NewDelayed("never", newCounter())

	assert.False(t, d.Schedule(tick.Forever))
	assert.False(t, d.IsPending())
	assert.False(t, d.Reschedule(tick.Forever))
}

func TestDelayed_RescheduleReplacesDeadline(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	d := q.NewDelayed("debounce", c)

	require.True(t, d.Schedule(tick.For(100*time.Millisecond)))
	for range 5 {
		time.Sleep(5 * time.Millisecond)
		require.True(t, d.Reschedule(tick.For(100*time.Millisecond)))
	}
	assert.Equal(t, int32(0), c.n.Load(), "each reschedule pushes the deadline out")

	c.waitRun(t)
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(1), c.n.Load(), "a replaced timer must not fire")
}

func TestDelayed_RescheduleRemovesQueuedRun(t *testing.T) {
	q := NewQueue()
	c := newCounter()
	d := q.NewDelayed("requeue", c)

	// not started, so a NoWait schedule stays queued
	require.True(t, d.Schedule(tick.NoWait))
	require.Equal(t, 1, q.Len())

	require.True(t, d.Reschedule(tick.For(time.Hour)))
	assert.Equal(t, 0, q.Len())
	assert.True(t, d.IsPending())
	assert.True(t, d.Cancel())
	assert.False(t, d.IsPending())
}

func TestDelayed_Introspection(t *testing.T) {
	q, _ := newTestQueue(t)
	d := q.NewDelayed("inspect", newCounter())

	assert.Equal(t, tick.Ticks(0), d.RemainingTime())
	assert.False(t, d.IsPending())
	assert.Equal(t, "inspect", d.Name())

	before := tick.Now()
	require.True(t, d.Schedule(tick.For(time.Second)))
	assert.True(t, d.IsPending())
	assert.False(t, d.IsRunning())

	exp := d.Expiration()
	assert.False(t, exp.Before(before.Add(tick.Default().ToTicks(time.Second))))

	rem := d.RemainingTime()
	assert.Positive(t, int64(rem))
	assert.LessOrEqual(t, int64(rem), int64(tick.Default().ToTicks(time.Second)))

	// introspection has no side effects
	assert.Equal(t, exp, d.Expiration())
	assert.True(t, d.IsPending())

	require.True(t, d.Cancel())
	assert.Equal(t, tick.Ticks(0), d.RemainingTime())
	assert.False(t, d.Cancel())
}

func TestDelayed_ScheduleAfterStopFails(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Start(ctx))
	d := q.NewDelayed("late", newCounter())
	require.True(t, d.Schedule(tick.For(5*time.Millisecond)))
	require.NoError(t, q.Stop(ctx))

	assert.False(t, d.Schedule(tick.For(time.Millisecond)))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.IsPending(), "an expiry after Stop is dropped")
}
