package kernel

import (
	"context"
	"time"

	"github.com/gammazero/deque"

	"github.com/a2y-d5l/go-rtkernel/tick"
)

// Waiter is a thread suspended on a resource. Val carries the primitive's request
// and result; it is only touched while the owning resource's Spinlock is held.
type Waiter[T any] struct {
	Val T

	priority int
	seq      uint64
	ready    chan struct{}
	woken    bool
	queued   bool
}

// NewWaiter creates a waiter for the calling thread, taking its priority from ctx.
func NewWaiter[T any](ctx context.Context, val T) *Waiter[T] {
	return &Waiter[T]{
		Val:      val,
		priority: Priority(ctx),
		ready:    make(chan struct{}, 1),
	}
}

// Woken reports whether a waker completed the wait.
func (w *Waiter[T]) Woken() bool { return w.woken }

// Priority returns the priority the waiter was queued with.
func (w *Waiter[T]) Priority() int { return w.priority }

// WaitQueue is a list of suspended threads ordered by priority, FIFO among equal
// priorities. It has no lock of its own: every method must be called with the
// owning resource's Spinlock held.
type WaitQueue[T any] struct {
	waiters deque.Deque[*Waiter[T]]
	seq     uint64
}

// Len returns the number of suspended waiters.
func (q *WaitQueue[T]) Len() int { return q.waiters.Len() }

// Enqueue inserts w behind every waiter of equal or more urgent priority.
func (q *WaitQueue[T]) Enqueue(w *Waiter[T]) {
	q.seq++
	w.seq = q.seq
	w.queued = true

	at := q.waiters.Len()
	for i := 0; i < q.waiters.Len(); i++ {
		if q.waiters.At(i).priority > w.priority {
			at = i
			break
		}
	}
	q.waiters.Insert(at, w)
}

// Remove takes w off the queue without waking it.
func (q *WaitQueue[T]) Remove(w *Waiter[T]) bool {
	if !w.queued {
		return false
	}
	i := q.waiters.Index(func(x *Waiter[T]) bool { return x == w })
	if i < 0 {
		return false
	}
	q.waiters.Remove(i)
	w.queued = false
	return true
}

// First returns the most urgent waiter, or nil.
func (q *WaitQueue[T]) First() *Waiter[T] {
	if q.waiters.Len() == 0 {
		return nil
	}
	return q.waiters.Front()
}

// Wake removes w from the queue and resumes it.
func (q *WaitQueue[T]) Wake(w *Waiter[T]) {
	q.Remove(w)
	w.woken = true
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// WakeFirst resumes the most urgent waiter, letting fn fill in its result first.
// It returns false when the queue is empty.
func (q *WaitQueue[T]) WakeFirst(fn func(w *Waiter[T])) bool {
	w := q.First()
	if w == nil {
		return false
	}
	if fn != nil {
		fn(w)
	}
	q.Wake(w)
	return true
}

// WakeIf visits waiters in wake order and resumes each one for which fn returns
// true. fn may update the resource state; later waiters observe the update. It
// returns the number of waiters resumed.
func (q *WaitQueue[T]) WakeIf(fn func(w *Waiter[T]) bool) int {
	n := 0
	for i := 0; i < q.waiters.Len(); {
		w := q.waiters.At(i)
		if !fn(w) {
			i++
			continue
		}
		q.waiters.Remove(i)
		w.queued = false
		w.woken = true
		select {
		case w.ready <- struct{}{}:
		default:
		}
		n++
	}
	return n
}

// WakeAll resumes every waiter after fn has filled in its result.
func (q *WaitQueue[T]) WakeAll(fn func(w *Waiter[T])) int {
	return q.WakeIf(func(w *Waiter[T]) bool {
		if fn != nil {
			fn(w)
		}
		return true
	})
}

// Pend suspends the calling thread on q until a waker resumes w, the timeout
// elapses or ctx is cancelled. It must be called with g held; the lock is released
// while suspended and held again on return.
//
// A nil return means w was woken and w.Val holds the waker's result. If the timeout
// races with a wake, the wake wins and the state the waker produced is kept.
func (q *WaitQueue[T]) Pend(ctx context.Context, g *Guard, w *Waiter[T], timeout tick.Timeout) error {
	if timeout.IsNoWait() {
		return ErrTimeout
	}

	q.Enqueue(w)
	g.Unlock()

	var expired <-chan time.Time
	if !timeout.IsForever() {
		t := time.NewTimer(timeout.Duration())
		defer t.Stop()
		expired = t.C
	}

	var err error
	select {
	case <-w.ready:
	case <-expired:
		err = ErrTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	g.Relock()
	if err != nil {
		if w.woken {
			return nil
		}
		q.Remove(w)
	}
	return err
}
