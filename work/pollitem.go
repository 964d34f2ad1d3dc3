package work

import (
	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/poll"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

// PollItem is a work item submitted when any of a set of poll events fires or a
// timeout elapses. Create it with Queue.NewPollItem.
type PollItem struct {
	item    Item
	watcher *poll.Watcher
	gen     uint64
	result  error
}

// NewPollItem creates a triggered item that runs h on q.
func (q *Queue) NewPollItem(name string, h Handler) *PollItem {
	return &PollItem{item: Item{q: q, name: name, h: h}}
}

// Name returns the item's label.
func (p *PollItem) Name() string { return p.item.name }

// Submit watches events and queues the item when one fires or timeout elapses.
// A previous watch is cancelled first, and a previously queued run is removed.
// Events already ready queue the item before Submit returns. An empty event list
// is rejected with kernel.ErrInvalidArgument.
func (p *PollItem) Submit(events []*poll.Event, timeout tick.Timeout) error {
	q := p.item.q
	if q.state.Load() == stateStopped {
		return ErrStopped
	}
	if len(events) == 0 {
		return kernel.ErrInvalidArgument
	}

	g := q.lock.Lock()
	old := p.watcher
	p.watcher = nil
	p.gen++
	gen := p.gen
	p.result = nil
	q.removeLocked(&p.item)
	g.Unlock()

	// sources call back into the queue under their own lock, so watchers are
	// stopped and armed with the queue lock released
	if old != nil {
		old.Stop()
	}
	w := poll.Watch(events, timeout, func(fired bool) { p.trigger(gen, fired) })

	g = q.lock.Lock()
	if p.gen == gen {
		p.watcher = w
	}
	g.Unlock()
	return nil
}

func (p *PollItem) trigger(gen uint64, fired bool) {
	q := p.item.q
	g := q.lock.Lock()
	if gen != p.gen {
		g.Unlock()
		return
	}
	p.result = nil
	if !fired {
		p.result = kernel.ErrTimeout
	}
	ok := q.enqueueLocked(&p.item)
	g.Unlock()

	if ok {
		q.noteSubmitted()
	}
}

// Cancel stops the watch and removes a queued run. It returns true if either
// prevented a run.
func (p *PollItem) Cancel() bool {
	q := p.item.q
	g := q.lock.Lock()
	w := p.watcher
	p.watcher = nil
	p.gen++
	removed := q.removeLocked(&p.item)
	g.Unlock()

	stopped := w != nil && w.Stop()
	if removed || stopped {
		q.noteCancelled()
		return true
	}
	return false
}

// Result reports why the item was last queued: nil when an event fired,
// kernel.ErrTimeout when the timeout elapsed.
func (p *PollItem) Result() error {
	g := p.item.q.lock.Lock()
	defer g.Unlock()
	return p.result
}

// IsPending reports whether the item is queued and has not started.
func (p *PollItem) IsPending() bool {
	g := p.item.q.lock.Lock()
	defer g.Unlock()
	return p.item.queued
}
