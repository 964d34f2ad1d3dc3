// Package event provides the event group: a shared 32-bit flag set that threads
// can wait on.
//
// The waiting side chooses the strategy: wait for any of a selection of flags or
// for all of them, and either consume the flags that satisfied the wait (WaitAny,
// WaitAll) or leave them for other waiters (SharedWaitAny, SharedWaitAll).
package event

import (
	"context"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

// Events is a bitmask of flags. The zero value is also the result of a wait that
// timed out.
type Events uint32

// Has reports whether every flag in mask is set in e.
func (e Events) Has(mask Events) bool { return e&mask == mask }

// request is what a suspended thread waits for, plus the flags it received.
type request struct {
	mask    Events
	all     bool
	consume bool
	got     Events
}

// match returns the flags of flags that satisfy r, or 0.
func (r *request) match(flags Events) Events {
	if r.all {
		if flags&r.mask == r.mask {
			return r.mask
		}
		return 0
	}
	return flags & r.mask
}

// Group is an event group. Create it with New; it must not be copied.
//
// Post, Clear, Modify and Get never block and may be called from interrupt
// context. The wait methods may suspend and require a thread context.
type Group struct {
	lock    kernel.Spinlock
	flags   Events
	waiters kernel.WaitQueue[request]
	ready   bool
}

// New creates an event group with no flags set.
func New() *Group {
	return &Group{ready: true}
}

// Post sets flags and wakes every waiter the new state satisfies. It returns the
// flags as they were before the call.
func (g *Group) Post(flags Events) Events {
	guard := g.lock.Lock()
	defer guard.Unlock()

	prev := g.flags
	g.flags |= flags
	g.wakeLocked()
	return prev
}

// Clear removes flags and returns the flags as they were before the call.
func (g *Group) Clear(flags Events) Events {
	guard := g.lock.Lock()
	defer guard.Unlock()

	prev := g.flags
	g.flags &^= flags
	return prev
}

// Modify replaces the flags selected by mask with the corresponding bits of flags
// and returns the flags as they were before the call.
func (g *Group) Modify(flags, mask Events) Events {
	guard := g.lock.Lock()
	defer guard.Unlock()

	prev := g.flags
	g.flags = (g.flags &^ mask) | (flags & mask)
	g.wakeLocked()
	return prev
}

// Get returns the current flags without changing them.
func (g *Group) Get() Events {
	return g.Clear(0)
}

// wakeLocked resumes waiters in priority order. A consuming waiter removes the
// flags it receives before the next waiter is evaluated, so no two consuming
// waiters take the same flag.
func (g *Group) wakeLocked() {
	if g.waiters.Len() == 0 || g.flags == 0 {
		return
	}
	g.waiters.WakeIf(func(w *kernel.Waiter[request]) bool {
		got := w.Val.match(g.flags)
		if got == 0 {
			return false
		}
		w.Val.got = got
		if w.Val.consume {
			g.flags &^= got
		}
		return true
	})
}

func (g *Group) wait(ctx context.Context, op string, req request, timeout tick.Timeout) Events {
	kernel.Assert(g != nil && g.ready, op, kernel.ErrUninitialized)
	if !timeout.IsNoWait() {
		kernel.MustBeThread(ctx, op)
	}
	if req.mask == 0 {
		return 0
	}

	guard := g.lock.Lock()
	defer guard.Unlock()

	if got := req.match(g.flags); got != 0 {
		if req.consume {
			g.flags &^= got
		}
		return got
	}

	w := kernel.NewWaiter(ctx, req)
	if err := g.waiters.Pend(ctx, &guard, w, timeout); err != nil {
		return 0
	}
	return w.Val.got
}

// WaitAny blocks until any flag of mask is set, clears the flags it observed and
// returns them.
func (g *Group) WaitAny(ctx context.Context, mask Events) Events {
	return g.WaitAnyFor(ctx, mask, tick.Forever)
}

// WaitAnyFor is WaitAny bounded by timeout. It returns 0 on timeout.
func (g *Group) WaitAnyFor(ctx context.Context, mask Events, timeout tick.Timeout) Events {
	return g.wait(ctx, "event.WaitAny", request{mask: mask, consume: true}, timeout)
}

// WaitAnyUntil is WaitAny bounded by a deadline on the default clock.
func (g *Group) WaitAnyUntil(ctx context.Context, mask Events, deadline tick.Instant) Events {
	return g.WaitAnyFor(ctx, mask, tick.Until(deadline))
}

// WaitAll blocks until every flag of mask is set, clears mask and returns it.
func (g *Group) WaitAll(ctx context.Context, mask Events) Events {
	return g.WaitAllFor(ctx, mask, tick.Forever)
}

// WaitAllFor is WaitAll bounded by timeout. It returns 0 on timeout.
func (g *Group) WaitAllFor(ctx context.Context, mask Events, timeout tick.Timeout) Events {
	return g.wait(ctx, "event.WaitAll", request{mask: mask, all: true, consume: true}, timeout)
}

// WaitAllUntil is WaitAll bounded by a deadline on the default clock.
func (g *Group) WaitAllUntil(ctx context.Context, mask Events, deadline tick.Instant) Events {
	return g.WaitAllFor(ctx, mask, tick.Until(deadline))
}

// SharedWaitAny blocks until any flag of mask is set and returns the flags of mask
// that were set, leaving them in place.
func (g *Group) SharedWaitAny(ctx context.Context, mask Events) Events {
	return g.SharedWaitAnyFor(ctx, mask, tick.Forever)
}

// SharedWaitAnyFor is SharedWaitAny bounded by timeout.
func (g *Group) SharedWaitAnyFor(ctx context.Context, mask Events, timeout tick.Timeout) Events {
	return g.wait(ctx, "event.SharedWaitAny", request{mask: mask}, timeout)
}

// SharedWaitAnyUntil is SharedWaitAny bounded by a deadline on the default clock.
func (g *Group) SharedWaitAnyUntil(ctx context.Context, mask Events, deadline tick.Instant) Events {
	return g.SharedWaitAnyFor(ctx, mask, tick.Until(deadline))
}

// SharedWaitAll blocks until every flag of mask is set and returns mask, leaving
// the flags in place.
func (g *Group) SharedWaitAll(ctx context.Context, mask Events) Events {
	return g.SharedWaitAllFor(ctx, mask, tick.Forever)
}

// SharedWaitAllFor is SharedWaitAll bounded by timeout.
func (g *Group) SharedWaitAllFor(ctx context.Context, mask Events, timeout tick.Timeout) Events {
	return g.wait(ctx, "event.SharedWaitAll", request{mask: mask, all: true}, timeout)
}

// SharedWaitAllUntil is SharedWaitAll bounded by a deadline on the default clock.
func (g *Group) SharedWaitAllUntil(ctx context.Context, mask Events, deadline tick.Instant) Events {
	return g.SharedWaitAllFor(ctx, mask, tick.Until(deadline))
}
