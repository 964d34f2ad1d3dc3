// Package poll lets one thread wait on several heterogeneous sources at once: a
// Signal being raised, a message queue holding data or a semaphore having a token.
//
// Poll blocks until at least one source is ready and records which ones were on
// the Event values passed in. It never consumes anything: after Poll returns the
// caller takes the token or message itself.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

// Watcher is an armed, asynchronous poll created by Watch.
type Watcher struct {
	mu     sync.Mutex
	done   bool
	armed  bool
	events []*Event
	hooks  []*kernel.PollHook
	timer  *time.Timer
	fn     func(fired bool)

	detachOnce sync.Once
}

// Watch arms an asynchronous poll over events. fn is called exactly once: with
// true when a source becomes ready, or with false when timeout elapses first. fn
// may run inside a source's critical section, so it must not block and must not
// call back into that source. If a source is already ready, fn runs before Watch
// returns.
func Watch(events []*Event, timeout tick.Timeout, fn func(fired bool)) *Watcher {
	kernel.Assert(fn != nil, "poll.Watch", kernel.ErrInvalidArgument)

	w := &Watcher{
		events: events,
		hooks:  make([]*kernel.PollHook, len(events)),
		fn:     fn,
	}
	for i, ev := range events {
		w.hooks[i] = kernel.NewPollHook(func(kernel.Pollable) { w.fire(ev) })
		ev.src.PollAttach(w.hooks[i])
	}

	// hooks are attached before readiness is sampled so no transition is missed
	var ready []*Event
	for _, ev := range events {
		if ev.src.PollReady() {
			ready = append(ready, ev)
		}
	}

	w.mu.Lock()
	w.armed = true
	if w.done {
		w.mu.Unlock()
		w.detach()
		return w
	}
	switch {
	case len(ready) > 0:
		w.done = true
		for _, ev := range ready {
			ev.mark(Ready)
		}
		w.mu.Unlock()
		w.detach()
		fn(true)
	case timeout.IsNoWait() || len(events) == 0:
		w.done = true
		w.markTimeouts()
		w.mu.Unlock()
		w.detach()
		fn(false)
	case timeout.IsForever():
		w.mu.Unlock()
	default:
		w.timer = time.AfterFunc(timeout.Duration(), w.expire)
		w.mu.Unlock()
	}
	return w
}

// fire runs inside src's critical section, so detaching is left to another
// goroutine. A hook firing while Watch is still attaching leaves the detach to
// Watch.
func (w *Watcher) fire(ev *Event) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	armed := w.armed
	ev.mark(Ready)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if armed {
		go w.detach()
	}
	w.fn(true)
}

func (w *Watcher) expire() {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.markTimeouts()
	w.mu.Unlock()

	w.detach()
	w.fn(false)
}

func (w *Watcher) markTimeouts() {
	for _, ev := range w.events {
		ev.markTimeout()
	}
}

func (w *Watcher) detach() {
	w.detachOnce.Do(func() {
		for i, ev := range w.events {
			ev.src.PollDetach(w.hooks[i])
		}
	})
}

// Stop disarms the watcher. It returns true if fn had not been called and now
// never will be. Stop detaches from the sources, so it must not be called while
// holding a source's lock.
func (w *Watcher) Stop() bool {
	w.mu.Lock()
	stopped := !w.done
	w.done = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.detach()
	return stopped
}

// Poll blocks until at least one source in events is ready, the timeout elapses,
// or ctx is cancelled. It reports whether a source fired.
//
// Every source already ready on entry is marked Ready. Otherwise only the source
// whose transition woke the caller is marked. When the timeout elapses, entries
// still NotReady are marked Timeout. States are never cleared by Poll.
func Poll(ctx context.Context, events []*Event, timeout tick.Timeout) bool {
	if !timeout.IsNoWait() {
		kernel.MustBeThread(ctx, "poll.Poll")
	}

	result := make(chan bool, 1)
	w := Watch(events, timeout, func(fired bool) { result <- fired })

	select {
	case fired := <-result:
		w.detach()
		return fired
	case <-ctx.Done():
		if w.Stop() {
			return false
		}
		return <-result
	}
}

// PollUntil is Poll bounded by a deadline on the default clock.
func PollUntil(ctx context.Context, events []*Event, deadline tick.Instant) bool {
	return Poll(ctx, events, tick.Until(deadline))
}
