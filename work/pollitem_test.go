package work

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/msgq"
	"github.com/a2y-d5l/go-rtkernel/poll"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

func TestPollItem_RunsWhenSignalRaised(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	p := q.NewPollItem("irq-bottom-half", c)
	sig := poll.NewSignal()
	ev := poll.NewEvent(sig)

	require.NoError(t, p.Submit([]*poll.Event{ev}, tick.Forever))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), c.n.Load())

	sig.Raise(7)
	c.waitRun(t)
	require.NoError(t, q.Drain(context.Background()))

	assert.NoError(t, p.Result())
	assert.Equal(t, poll.Ready, ev.State())
	res, ok := sig.Check()
	assert.True(t, ok)
	assert.Equal(t, 7, res)
}

func TestPollItem_ReadySourceQueuesBeforeSubmitReturns(t *testing.T) {
	q := NewQueue()
	sig := poll.NewSignal()
	sig.Raise(1)

	p := q.NewPollItem("ready", newCounter())
	require.NoError(t, p.Submit([]*poll.Event{poll.NewEvent(sig)}, tick.Forever))
	assert.True(t, p.IsPending())
	assert.Equal(t, 1, q.Len())
}

func TestPollItem_TimeoutSetsResult(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	p := q.NewPollItem("watchdog", c)
	ev := poll.NewEvent(poll.NewSignal())

	require.NoError(t, p.Submit([]*poll.Event{ev}, tick.For(10*time.Millisecond)))
	c.waitRun(t)
	require.NoError(t, q.Drain(context.Background()))

	assert.ErrorIs(t, p.Result(), kernel.ErrTimeout)
	assert.Equal(t, poll.Timeout, ev.State())
}

func TestPollItem_RunsOnQueueData(t *testing.T) {
	q, _ := newTestQueue(t)
	mq := msgq.New[int](4)
	got := make(chan int, 1)

	p := q.NewPollItem("consumer", HandlerFunc(func(context.Context) error {
		v, ok := mq.TryGet()
		if !ok {
			return errors.New("queue empty")
		}
		got <- v
		return nil
	}))
	require.NoError(t, p.Submit([]*poll.Event{poll.NewEvent(mq)}, tick.Forever))
	require.True(t, mq.TryPost(42))

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not run")
	}
}

func TestPollItem_ResubmitReplacesWatch(t *testing.T) {
	q, _ := newTestQueue(t)
	var runs atomic.Int32
	p := q.NewPollItem("rewatch", HandlerFunc(func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	first := poll.NewSignal()
	second := poll.NewSignal()
	require.NoError(t, p.Submit([]*poll.Event{poll.NewEvent(first)}, tick.Forever))
	require.NoError(t, p.Submit([]*poll.Event{poll.NewEvent(second)}, tick.Forever))

	first.Raise(0)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(0), runs.Load(), "the replaced watch must not trigger")

	second.Raise(0)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, time.Millisecond)
}

func TestPollItem_Cancel(t *testing.T) {
	q, _ := newTestQueue(t)
	c := newCounter()
	p := q.NewPollItem("cancelled", c)
	sig := poll.NewSignal()

	assert.False(t, p.Cancel(), "nothing armed")
	require.NoError(t, p.Submit([]*poll.Event{poll.NewEvent(sig)}, tick.Forever))
	assert.True(t, p.Cancel())

	sig.Raise(0)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, int32(0), c.n.Load())
	assert.False(t, p.IsPending())
}

func TestPollItem_SubmitAfterStop(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Start(ctx))
	require.NoError(t, q.Stop(ctx))

	p := q.NewPollItem("late", newCounter())
	assert.ErrorIs(t, p.Submit(nil, tick.Forever), ErrStopped)
}

func TestPollItem_SubmitRejectsEmptyEvents(t *testing.T) {
	q := NewQueue()
	p := q.NewPollItem("nothing", newCounter())

	assert.ErrorIs(t, p.Submit(nil, tick.For(time.Second)), kernel.ErrInvalidArgument)
	assert.ErrorIs(t, p.Submit([]*poll.Event{}, tick.NoWait), kernel.ErrInvalidArgument)
	assert.False(t, p.IsPending())
	assert.Equal(t, 0, q.Len())
	assert.NoError(t, p.Result())
}
