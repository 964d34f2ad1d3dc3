package msgq

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

func waitForPutters[T any](t *testing.T, q *Queue[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		g := q.lock.Lock()
		defer g.Unlock()
		return q.putters.Len() == n
	}, 5*time.Second, time.Millisecond)
}

func waitForGetters[T any](t *testing.T, q *Queue[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		g := q.lock.Lock()
		defer g.Unlock()
		return q.getters.Len() == n
	}, 5*time.Second, time.Millisecond)
}

func TestQueue_FIFOAndFull(t *testing.T) {
	ctx := context.Background()
	q := New[int](2)

	require.NoError(t, q.Post(ctx, 1))
	require.NoError(t, q.Post(ctx, 2))
	assert.False(t, q.TryPost(3))
	assert.True(t, q.Full())

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	assert.True(t, q.Empty())
	_, ok := q.TryGet()
	assert.False(t, ok)
}

func TestQueue_Snapshots(t *testing.T) {
	q := New[string](3)
	assert.Equal(t, 3, q.Capacity())
	assert.Equal(t, 3, q.FreeSpace())

	require.True(t, q.TryPost("a"))
	assert.Equal(t, 1, q.Size())
	assert.Equal(t, 2, q.FreeSpace())
	assert.False(t, q.Empty())
	assert.False(t, q.Full())
}

func TestQueue_RingWrapsAround(t *testing.T) {
	q := New[int](3)
	next, want := 0, 0
	for range 10 {
		for range 2 {
			require.True(t, q.TryPost(next))
			next++
		}
		for range 2 {
			v, ok := q.TryGet()
			require.True(t, ok)
			require.Equal(t, want, v)
			want++
		}
	}
	assert.True(t, q.Empty())
}

func TestQueue_PostHandsMessageToWaitingGetter(t *testing.T) {
	ctx := context.Background()
	q := New[int](1)

	got := make(chan int, 1)
	go func() {
		v, err := q.Get(ctx)
		if err == nil {
			got <- v
		}
	}()
	waitForGetters(t, q, 1)

	require.True(t, q.TryPost(42))
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(5 * time.Second):
		t.Fatal("getter not woken")
	}
	assert.True(t, q.Empty(), "a handed-over message never enters the ring")
}

func TestQueue_GetAdmitsPendingPutter(t *testing.T) {
	ctx := context.Background()
	q := New[int](2)
	require.True(t, q.TryPost(1))
	require.True(t, q.TryPost(2))

	done := make(chan error, 1)
	go func() { done <- q.Post(ctx, 3) }()
	waitForPutters(t, q, 1)

	v, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("putter not admitted")
	}
	assert.Equal(t, 2, q.Size())

	for _, want := range []int{2, 3} {
		v, ok := q.TryGet()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestQueue_Peek(t *testing.T) {
	q := New[int](2)
	_, ok := q.Peek()
	assert.False(t, ok)

	q.TryPost(7)
	q.TryPost(8)
	v, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, q.Size())
}

func TestQueue_FlushReleasesPutters(t *testing.T) {
	ctx := context.Background()
	q := New[int](1)
	require.True(t, q.TryPost(1))

	done := make(chan error, 1)
	go func() { done <- q.Post(ctx, 2) }()
	waitForPutters(t, q, 1)

	q.Flush()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFlushed)
	case <-time.After(5 * time.Second):
		t.Fatal("putter not released")
	}
	assert.True(t, q.Empty())
	_, ok := q.TryGet()
	assert.False(t, ok, "the flushed putter's message must not be queued")
}

func TestQueue_Timeouts(t *testing.T) {
	ctx := context.Background()
	q := New[int](1)

	start := time.Now()
	_, ok := q.TryGetFor(ctx, tick.For(20*time.Millisecond))
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.True(t, q.TryPost(1))
	assert.False(t, q.TryPostFor(ctx, 2, tick.For(10*time.Millisecond)))
	assert.False(t, q.TryPostUntil(ctx, 2, tick.Now().Add(-1)))
	waitForPutters(t, q, 0)

	v, ok := q.TryGetUntil(ctx, tick.Deadline(time.Second))
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestQueue_CancelledGet(t *testing.T) {
	q := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errc <- err
	}()
	waitForGetters(t, q, 1)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("get not cancelled")
	}
	waitForGetters(t, q, 0)

	// the queue still works after a cancelled waiter
	require.True(t, q.TryPost(5))
	v, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestQueue_ProducerConsumerKeepsOrder(t *testing.T) {
	ctx := context.Background()
	q := New[int](4)
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			if err := q.Post(ctx, i); err != nil {
				t.Errorf("post %d: %v", i, err)
				return
			}
		}
	}()

	for i := range n {
		v, err := q.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	wg.Wait()
	assert.True(t, q.Empty())
}

func TestQueue_ContractViolations(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })

	isr := kernel.WithISR(context.Background())
	q := New[int](1)
	assert.Panics(t, func() { _ = q.Post(isr, 1) })
	assert.Panics(t, func() { _, _ = q.Get(isr) })
	assert.True(t, q.TryPostFor(isr, 1, tick.NoWait))
	_, ok := q.TryGetFor(isr, tick.NoWait)
	assert.True(t, ok)

	var zero Queue[int]
	assert.Panics(t, func() { zero.TryPost(1) })
}

func TestQueue_Pollable(t *testing.T) {
	q := New[int](2)
	assert.Equal(t, kernel.PollQueueData, q.PollKind())
	assert.False(t, q.PollReady())

	var fired atomic.Int32
	h := kernel.NewPollHook(func(src kernel.Pollable) {
		assert.Same(t, q, src)
		fired.Add(1)
	})
	q.PollAttach(h)
	q.TryPost(1)
	assert.True(t, q.PollReady())
	assert.Equal(t, int32(1), fired.Load())

	q.PollDetach(h)
	q.TryPost(2)
	assert.Equal(t, int32(1), fired.Load())
}
