// Package sem provides a counting semaphore with a capacity fixed at construction.
package sem

import (
	"context"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

type grant struct {
	aborted bool
}

// Semaphore is a bounded token counter. Create it with New; it must not be copied.
//
// The count always stays within [0, Capacity]. Release rejects, as a whole, any
// release that would push the count past capacity.
type Semaphore struct {
	lock     kernel.Spinlock
	count    int
	capacity int
	waiters  kernel.WaitQueue[grant]
	pollers  kernel.PollList
	ready    bool
}

// New creates a semaphore holding initial tokens out of capacity.
func New(initial, capacity int) *Semaphore {
	if capacity < 1 {
		kernel.Faultf("sem.New", kernel.ErrInvalidArgument, "capacity %d", capacity)
	}
	if initial < 0 || initial > capacity {
		kernel.Faultf("sem.New", kernel.ErrInvalidArgument, "initial %d outside [0, %d]", initial, capacity)
	}
	return &Semaphore{
		count:    initial,
		capacity: capacity,
		ready:    true,
	}
}

// NewBinary creates a semaphore of capacity 1.
func NewBinary(initial int) *Semaphore { return New(initial, 1) }

// Capacity returns the maximum token count.
func (s *Semaphore) Capacity() int { return s.capacity }

// Count returns the tokens currently available.
func (s *Semaphore) Count() int {
	g := s.lock.Lock()
	defer g.Unlock()
	return s.count
}

// Acquire blocks until a token is available and takes it. It returns ctx.Err() if
// ctx is cancelled first, or kernel.ErrCancelled if Reset aborted the wait.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.acquire(ctx, "sem.Acquire", tick.Forever)
}

// TryAcquire takes a token if one is available, without blocking.
func (s *Semaphore) TryAcquire() bool {
	return s.acquire(context.Background(), "sem.TryAcquire", tick.NoWait) == nil
}

// TryAcquireFor waits at most timeout for a token.
func (s *Semaphore) TryAcquireFor(ctx context.Context, timeout tick.Timeout) bool {
	return s.acquire(ctx, "sem.TryAcquireFor", timeout) == nil
}

// TryAcquireUntil waits for a token until deadline on the default clock.
func (s *Semaphore) TryAcquireUntil(ctx context.Context, deadline tick.Instant) bool {
	return s.TryAcquireFor(ctx, tick.Until(deadline))
}

func (s *Semaphore) acquire(ctx context.Context, op string, timeout tick.Timeout) error {
	kernel.Assert(s != nil && s.ready, op, kernel.ErrUninitialized)
	if !timeout.IsNoWait() {
		kernel.MustBeThread(ctx, op)
	}

	g := s.lock.Lock()
	defer g.Unlock()

	if s.count > 0 {
		s.count--
		return nil
	}

	w := kernel.NewWaiter(ctx, grant{})
	if err := s.waiters.Pend(ctx, &g, w, timeout); err != nil {
		return err
	}
	if w.Val.aborted {
		return kernel.ErrCancelled
	}
	return nil
}

// Release returns k tokens. Suspended acquirers are served first, in priority
// order; the remaining tokens are added to the count. If those remaining tokens
// would exceed capacity nothing is released and kernel.ErrCapacityExceeded is
// returned. Release never blocks and may be called from interrupt context.
func (s *Semaphore) Release(k int) error {
	kernel.Assert(k >= 0, "sem.Release", kernel.ErrInvalidArgument)

	g := s.lock.Lock()
	defer g.Unlock()

	handed := min(k, s.waiters.Len())
	leftover := k - handed
	if s.count+leftover > s.capacity {
		return kernel.ErrCapacityExceeded
	}

	for range handed {
		s.waiters.WakeFirst(nil)
	}
	if leftover > 0 {
		s.count += leftover
		s.pollers.Notify(s)
	}
	return nil
}

// Reset drops the count to zero and aborts every suspended acquirer with
// kernel.ErrCancelled.
func (s *Semaphore) Reset() {
	g := s.lock.Lock()
	defer g.Unlock()

	s.count = 0
	s.waiters.WakeAll(func(w *kernel.Waiter[grant]) { w.Val.aborted = true })
}

// PollKind implements kernel.Pollable.
func (s *Semaphore) PollKind() kernel.PollKind { return kernel.PollSemAvailable }

// PollReady implements kernel.Pollable: a token is available.
func (s *Semaphore) PollReady() bool { return s.Count() > 0 }

// PollAttach implements kernel.Pollable.
func (s *Semaphore) PollAttach(h *kernel.PollHook) {
	g := s.lock.Lock()
	defer g.Unlock()
	s.pollers.Attach(h)
}

// PollDetach implements kernel.Pollable.
func (s *Semaphore) PollDetach(h *kernel.PollHook) {
	g := s.lock.Lock()
	defer g.Unlock()
	s.pollers.Detach(h)
}
