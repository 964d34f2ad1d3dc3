// Package work provides work queues: a dedicated worker thread that runs
// submitted items one at a time, in submission order.
//
// Three kinds of item share a queue:
//
//   - Item runs once per Submit. Submitting an item that is still queued is a
//     no-op, so an interrupt handler can submit the same item repeatedly without
//     duplicate runs.
//   - Delayed arms a one-shot timer; on expiry the item joins the FIFO.
//   - PollItem joins the FIFO when any of a set of poll events fires or its
//     timeout elapses.
//
// Submit and Cancel never block and may be called from interrupt context.
package work

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/observability"
)

// Handler is the work a queue item runs.
type Handler interface {
	Handle(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) Handle(ctx context.Context) error { return f(ctx) }

// Stats counts queue activity since creation.
type Stats struct {
	Submitted uint64
	Completed uint64
	Cancelled uint64
	Panics    uint64
	Depth     int
}

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Queue is a work queue with a single worker thread. Create it with NewQueue.
type Queue struct {
	cfg     config
	log     *observability.WorkLogger
	metrics *observability.KernelMetrics

	lock     kernel.Spinlock
	fifo     deque.Deque[*Item]
	current  *Item
	drainers []chan struct{}

	state  atomic.Int32
	wake   chan struct{}
	quit   chan struct{}
	thread *kernel.Thread

	submitted atomic.Uint64
	completed atomic.Uint64
	cancelled atomic.Uint64
	panics    atomic.Uint64
}

// NewQueue creates a stopped queue. Items may be submitted before Start; they
// run once the worker starts.
func NewQueue(opts ...Option) *Queue {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Queue{
		cfg:     cfg,
		log:     observability.NewWorkLogger(cfg.logger, cfg.name),
		metrics: observability.NewKernelMetrics(cfg.metrics),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.cfg.name }

// Len returns the number of queued items, not counting one being run.
func (q *Queue) Len() int {
	g := q.lock.Lock()
	defer g.Unlock()
	return q.fifo.Len()
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Completed: q.completed.Load(),
		Cancelled: q.cancelled.Load(),
		Panics:    q.panics.Load(),
		Depth:     q.Len(),
	}
}

// Start launches the worker thread. ctx is the parent of the context handlers
// receive; cancelling it does not stop the worker, Stop does.
func (q *Queue) Start(ctx context.Context) error {
	g := q.lock.Lock()
	if !q.state.CompareAndSwap(stateIdle, stateRunning) {
		g.Unlock()
		if q.state.Load() == stateStopped {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}
	q.thread = kernel.Spawn(context.WithoutCancel(ctx), q.cfg.priority, q.run)
	g.Unlock()

	q.log.LogStarted(ctx, q.cfg.priority)
	return nil
}

// Stop rejects further submissions, lets the running handler finish and stops
// the worker. Items still queued are discarded. It returns ctx.Err() if the
// worker has not exited when ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	// the state changes under the lock so a concurrent Start has published
	// the worker thread before Stop reads it
	g := q.lock.Lock()
	prev := q.state.Swap(stateStopped)
	if prev == stateStopped {
		g.Unlock()
		return ErrStopped
	}
	th := q.thread
	discarded := q.fifo.Len()
	for q.fifo.Len() > 0 {
		q.fifo.PopFront().queued = false
	}
	q.releaseDrainersLocked()
	g.Unlock()
	q.metrics.RecordQueueDepth(q.cfg.name, 0)

	var err error
	if prev == stateRunning {
		close(q.quit)
		err = th.Join(ctx)
	}
	q.log.LogStopped(ctx, discarded, err)
	return err
}

// Drain blocks until the queue is empty and no handler is running. Items
// submitted while draining, including by handlers, are waited for too.
func (q *Queue) Drain(ctx context.Context) error {
	kernel.MustBeThread(ctx, "work.Drain")
	switch q.state.Load() {
	case stateIdle:
		return ErrNotStarted
	case stateStopped:
		return ErrStopped
	}

	g := q.lock.Lock()
	if q.fifo.Len() == 0 && q.current == nil {
		g.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.drainers = append(q.drainers, ch)
	g.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) releaseDrainersLocked() {
	for _, ch := range q.drainers {
		close(ch)
	}
	q.drainers = nil
}

// enqueueLocked appends it to the FIFO unless it is already queued or the queue
// is stopped.
func (q *Queue) enqueueLocked(it *Item) bool {
	if it.queued || q.state.Load() == stateStopped {
		return false
	}
	it.queued = true
	q.fifo.PushBack(it)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// removeLocked takes it off the FIFO if it is queued.
func (q *Queue) removeLocked(it *Item) bool {
	if !it.queued {
		return false
	}
	i := q.fifo.Index(func(x *Item) bool { return x == it })
	if i < 0 {
		return false
	}
	q.fifo.Remove(i)
	it.queued = false
	return true
}

func (q *Queue) noteSubmitted() {
	q.submitted.Add(1)
	q.metrics.RecordWorkSubmitted(q.cfg.name)
}

func (q *Queue) noteCancelled() {
	q.cancelled.Add(1)
	q.metrics.RecordWorkCancelled(q.cfg.name)
}

// next dequeues the item to run, or returns nil when the FIFO is empty.
func (q *Queue) next() (*Item, int) {
	g := q.lock.Lock()
	defer g.Unlock()

	q.current = nil
	if q.fifo.Len() == 0 {
		q.releaseDrainersLocked()
		return nil, 0
	}
	it := q.fifo.PopFront()
	it.queued = false
	it.running = true
	q.current = it
	return it, q.fifo.Len()
}

func (q *Queue) finish(it *Item) {
	g := q.lock.Lock()
	defer g.Unlock()
	it.running = false
}

func (q *Queue) run(ctx context.Context) {
	for {
		it, depth := q.next()
		if it == nil {
			select {
			case <-q.wake:
				continue
			case <-q.quit:
				return
			}
		}
		q.metrics.RecordQueueDepth(q.cfg.name, depth)
		q.invoke(ctx, it)
		q.finish(it)

		select {
		case <-q.quit:
			g := q.lock.Lock()
			q.current = nil
			q.releaseDrainersLocked()
			g.Unlock()
			return
		default:
		}
	}
}

// invoke runs one handler, recovering a panic so the worker survives it.
func (q *Queue) invoke(ctx context.Context, it *Item) {
	start := time.Now()
	ctx, span := q.cfg.tracer.Start(ctx, "work.run",
		observability.WithSpanKind(observability.SpanKindConsumer),
		observability.WithAttributes(map[string]any{
			"work.queue": q.cfg.name,
			"work.item":  it.name,
		}),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			q.panics.Add(1)
			q.metrics.RecordWorkPanic(q.cfg.name)
			q.log.LogHandlerPanic(ctx, it.name, r)
			span.SetStatus(observability.SpanStatusError, "panic")
		}
	}()

	if err := it.h.Handle(ctx); err != nil {
		q.log.WithContext(ctx).Warn("work handler returned an error",
			observability.WorkItem(it.name),
			observability.ErrorField(err),
		)
		span.SetStatus(observability.SpanStatusError, err.Error())
	} else {
		span.SetStatus(observability.SpanStatusOK, "")
	}

	d := time.Since(start)
	q.completed.Add(1)
	q.metrics.RecordWorkCompleted(q.cfg.name, d)
	q.log.LogHandlerDone(ctx, it.name, d)
}
