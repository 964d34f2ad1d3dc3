// Package msgq provides a bounded FIFO message queue with blocking and
// non-blocking put and get.
//
// Messages are copied by value into a ring allocated once by New. When the ring is
// full, putters may wait for space; when it is empty, getters may wait for data.
// A put with a waiting getter hands the message straight to it.
package msgq

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

// ErrFlushed is returned to a putter whose pending message was discarded by Flush.
var ErrFlushed = errors.New("msgq: queue flushed")

type getReq[T any] struct {
	msg T
}

type putReq[T any] struct {
	msg     T
	flushed bool
}

// Queue is a bounded FIFO of T. Create it with New; it must not be copied.
type Queue[T any] struct {
	lock    kernel.Spinlock
	buf     []T
	head    int
	count   int
	getters kernel.WaitQueue[getReq[T]]
	putters kernel.WaitQueue[putReq[T]]
	pollers kernel.PollList
	size    atomic.Int64
	ready   bool
}

// New creates a queue holding at most capacity messages.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		kernel.Faultf("msgq.New", kernel.ErrInvalidArgument, "capacity %d", capacity)
	}
	return &Queue[T]{
		buf:   make([]T, capacity),
		ready: true,
	}
}

// Capacity returns the maximum number of messages.
func (q *Queue[T]) Capacity() int { return len(q.buf) }

// Size returns the number of queued messages. The value is a snapshot and may be
// stale by the time the caller acts on it.
func (q *Queue[T]) Size() int { return int(q.size.Load()) }

// FreeSpace returns the number of free slots, as a snapshot.
func (q *Queue[T]) FreeSpace() int { return q.Capacity() - q.Size() }

// Empty reports whether the queue held no messages when sampled.
func (q *Queue[T]) Empty() bool { return q.Size() == 0 }

// Full reports whether the queue had no free slot when sampled.
func (q *Queue[T]) Full() bool { return q.Size() == q.Capacity() }

func (q *Queue[T]) pushLocked(msg T) {
	q.buf[(q.head+q.count)%len(q.buf)] = msg
	q.count++
	q.size.Store(int64(q.count))
}

func (q *Queue[T]) popLocked() T {
	var zero T
	msg := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.size.Store(int64(q.count))
	return msg
}

// Post blocks until msg is queued. It returns ctx.Err() on cancellation, or
// ErrFlushed if Flush discarded the pending message.
func (q *Queue[T]) Post(ctx context.Context, msg T) error {
	return q.post(ctx, "msgq.Post", msg, tick.Forever)
}

// TryPost queues msg if a slot is free, without blocking.
func (q *Queue[T]) TryPost(msg T) bool {
	return q.post(context.Background(), "msgq.TryPost", msg, tick.NoWait) == nil
}

// TryPostFor waits at most timeout for a free slot.
func (q *Queue[T]) TryPostFor(ctx context.Context, msg T, timeout tick.Timeout) bool {
	return q.post(ctx, "msgq.TryPostFor", msg, timeout) == nil
}

// TryPostUntil waits for a free slot until deadline on the default clock.
func (q *Queue[T]) TryPostUntil(ctx context.Context, msg T, deadline tick.Instant) bool {
	return q.TryPostFor(ctx, msg, tick.Until(deadline))
}

func (q *Queue[T]) post(ctx context.Context, op string, msg T, timeout tick.Timeout) error {
	kernel.Assert(q != nil && q.ready, op, kernel.ErrUninitialized)
	if !timeout.IsNoWait() {
		kernel.MustBeThread(ctx, op)
	}

	g := q.lock.Lock()
	defer g.Unlock()

	// getters only wait on an empty ring, so handing over keeps FIFO order
	if q.getters.WakeFirst(func(w *kernel.Waiter[getReq[T]]) { w.Val.msg = msg }) {
		return nil
	}
	if q.count < len(q.buf) {
		q.pushLocked(msg)
		q.pollers.Notify(q)
		return nil
	}

	w := kernel.NewWaiter(ctx, putReq[T]{msg: msg})
	if err := q.putters.Pend(ctx, &g, w, timeout); err != nil {
		return err
	}
	if w.Val.flushed {
		return ErrFlushed
	}
	return nil
}

// Get blocks until a message is available and removes it.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	return q.get(ctx, "msgq.Get", tick.Forever)
}

// TryGet removes the oldest message if there is one, without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	msg, err := q.get(context.Background(), "msgq.TryGet", tick.NoWait)
	return msg, err == nil
}

// TryGetFor waits at most timeout for a message.
func (q *Queue[T]) TryGetFor(ctx context.Context, timeout tick.Timeout) (T, bool) {
	msg, err := q.get(ctx, "msgq.TryGetFor", timeout)
	return msg, err == nil
}

// TryGetUntil waits for a message until deadline on the default clock.
func (q *Queue[T]) TryGetUntil(ctx context.Context, deadline tick.Instant) (T, bool) {
	return q.TryGetFor(ctx, tick.Until(deadline))
}

func (q *Queue[T]) get(ctx context.Context, op string, timeout tick.Timeout) (T, error) {
	kernel.Assert(q != nil && q.ready, op, kernel.ErrUninitialized)
	if !timeout.IsNoWait() {
		kernel.MustBeThread(ctx, op)
	}

	g := q.lock.Lock()
	defer g.Unlock()

	if q.count > 0 {
		msg := q.popLocked()
		// the freed slot goes to the most urgent pending putter
		q.putters.WakeFirst(func(w *kernel.Waiter[putReq[T]]) { q.pushLocked(w.Val.msg) })
		return msg, nil
	}

	w := kernel.NewWaiter(ctx, getReq[T]{})
	if err := q.getters.Pend(ctx, &g, w, timeout); err != nil {
		var zero T
		return zero, err
	}
	return w.Val.msg, nil
}

// Peek returns the oldest message without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	g := q.lock.Lock()
	defer g.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Flush discards every queued message. Pending putters are released with
// ErrFlushed and their messages are dropped.
func (q *Queue[T]) Flush() {
	g := q.lock.Lock()
	defer g.Unlock()

	clear(q.buf)
	q.head = 0
	q.count = 0
	q.size.Store(0)
	q.putters.WakeAll(func(w *kernel.Waiter[putReq[T]]) { w.Val.flushed = true })
}

// PollKind implements kernel.Pollable.
func (q *Queue[T]) PollKind() kernel.PollKind { return kernel.PollQueueData }

// PollReady implements kernel.Pollable: at least one message is queued.
func (q *Queue[T]) PollReady() bool { return !q.Empty() }

// PollAttach implements kernel.Pollable.
func (q *Queue[T]) PollAttach(h *kernel.PollHook) {
	g := q.lock.Lock()
	defer g.Unlock()
	q.pollers.Attach(h)
}

// PollDetach implements kernel.Pollable.
func (q *Queue[T]) PollDetach(h *kernel.PollHook) {
	g := q.lock.Lock()
	defer g.Unlock()
	q.pollers.Detach(h)
}
