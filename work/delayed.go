package work

import (
	"time"

	"github.com/a2y-d5l/go-rtkernel/tick"
)

// Delayed is a work item submitted by a one-shot timer. Create it with
// Queue.NewDelayed.
//
// Every arm and cancel bumps a generation counter, and a timer expiry only
// submits the item if its generation is still current. A stale expiry that
// lost the race with Cancel or Reschedule is discarded.
type Delayed struct {
	item      Item
	timer     *time.Timer
	gen       uint64
	scheduled bool
	expiry    tick.Instant
}

// NewDelayed creates a delayed item that runs h on q.
func (q *Queue) NewDelayed(name string, h Handler) *Delayed {
	return &Delayed{item: Item{q: q, name: name, h: h}}
}

// Name returns the item's label.
func (d *Delayed) Name() string { return d.item.name }

// Schedule arms the timer to submit the item after timeout. It is a no-op
// returning false if the item is already scheduled or queued, or the queue is
// stopped. NoWait submits immediately. Forever never expires and is rejected.
func (d *Delayed) Schedule(timeout tick.Timeout) bool {
	q := d.item.q
	g := q.lock.Lock()
	if d.scheduled || d.item.queued {
		g.Unlock()
		return false
	}
	ok := d.armLocked(timeout)
	g.Unlock()

	if ok && timeout.IsNoWait() {
		q.noteSubmitted()
	}
	return ok
}

// Reschedule cancels any pending timer and queued run, then arms the timer
// for timeout. The cancellation and the new arm happen in one critical section.
func (d *Delayed) Reschedule(timeout tick.Timeout) bool {
	q := d.item.q
	g := q.lock.Lock()
	d.disarmLocked()
	q.removeLocked(&d.item)
	ok := d.armLocked(timeout)
	g.Unlock()

	if ok && timeout.IsNoWait() {
		q.noteSubmitted()
	}
	return ok
}

func (d *Delayed) armLocked(timeout tick.Timeout) bool {
	q := d.item.q
	if q.state.Load() == stateStopped || timeout.IsForever() {
		return false
	}
	if timeout.IsNoWait() {
		return q.enqueueLocked(&d.item)
	}

	d.gen++
	gen := d.gen
	d.scheduled = true
	d.expiry = q.cfg.clock.Now().Add(q.cfg.clock.ToTicks(timeout.Duration()))
	d.timer = time.AfterFunc(timeout.Duration(), func() { d.expire(gen) })
	return true
}

func (d *Delayed) disarmLocked() bool {
	if !d.scheduled {
		return false
	}
	d.timer.Stop()
	d.scheduled = false
	d.gen++
	return true
}

func (d *Delayed) expire(gen uint64) {
	q := d.item.q
	g := q.lock.Lock()
	if gen != d.gen || !d.scheduled {
		g.Unlock()
		return
	}
	d.scheduled = false
	ok := q.enqueueLocked(&d.item)
	g.Unlock()

	if ok {
		q.noteSubmitted()
	}
}

// Cancel disarms the timer and removes a queued run. It returns true if either
// prevented a run. A handler already running is not interrupted.
func (d *Delayed) Cancel() bool {
	q := d.item.q
	g := q.lock.Lock()
	disarmed := d.disarmLocked()
	removed := q.removeLocked(&d.item)
	g.Unlock()

	if disarmed || removed {
		q.noteCancelled()
		return true
	}
	return false
}

// IsPending reports whether the timer is armed or the item is queued.
func (d *Delayed) IsPending() bool {
	g := d.item.q.lock.Lock()
	defer g.Unlock()
	return d.scheduled || d.item.queued
}

// IsRunning reports whether the handler is running.
func (d *Delayed) IsRunning() bool {
	g := d.item.q.lock.Lock()
	defer g.Unlock()
	return d.item.running
}

// Expiration returns the instant the timer was last armed to expire at.
func (d *Delayed) Expiration() tick.Instant {
	g := d.item.q.lock.Lock()
	defer g.Unlock()
	return d.expiry
}

// RemainingTime returns the ticks left before the armed timer expires, or 0 when
// it is not armed.
func (d *Delayed) RemainingTime() tick.Ticks {
	q := d.item.q
	g := q.lock.Lock()
	defer g.Unlock()
	if !d.scheduled {
		return 0
	}
	return max(d.expiry.Sub(q.cfg.clock.Now()), 0)
}
