package work

// Item is an immediate work item bound to one queue. Create it with
// Queue.NewItem. Its state is guarded by the queue lock.
type Item struct {
	q       *Queue
	name    string
	h       Handler
	queued  bool
	running bool
}

// NewItem creates an item that runs h on q. name labels the item in logs and
// spans.
func (q *Queue) NewItem(name string, h Handler) *Item {
	return &Item{q: q, name: name, h: h}
}

// Name returns the item's label.
func (it *Item) Name() string { return it.name }

// Submit appends the item to the queue. It returns false if the item is already
// queued or the queue is stopped. An item whose handler is running is queued
// again and runs once more after the current run.
func (it *Item) Submit() bool {
	g := it.q.lock.Lock()
	ok := it.q.enqueueLocked(it)
	g.Unlock()

	if ok {
		it.q.noteSubmitted()
	}
	return ok
}

// Cancel removes the item from the queue. It returns true only if that prevented
// a run; a handler already running is not interrupted.
func (it *Item) Cancel() bool {
	g := it.q.lock.Lock()
	ok := it.q.removeLocked(it)
	g.Unlock()

	if ok {
		it.q.noteCancelled()
	}
	return ok
}

// IsPending reports whether the item is queued and has not started.
func (it *Item) IsPending() bool {
	g := it.q.lock.Lock()
	defer g.Unlock()
	return it.queued
}

// IsRunning reports whether the item's handler is running.
func (it *Item) IsRunning() bool {
	g := it.q.lock.Lock()
	defer g.Unlock()
	return it.running
}
