package kernel

// PollKind identifies the readiness condition a Pollable source exposes.
type PollKind int

const (
	// PollSignal is ready once the signal has been raised.
	PollSignal PollKind = iota
	// PollQueueData is ready while a message queue holds at least one message.
	PollQueueData
	// PollSemAvailable is ready while a semaphore has a token to take.
	PollSemAvailable
)

func (k PollKind) String() string {
	switch k {
	case PollSignal:
		return "signal"
	case PollQueueData:
		return "queue-data"
	case PollSemAvailable:
		return "sem-available"
	default:
		return "unknown"
	}
}

// Pollable is a resource whose readiness can be observed without consuming it.
type Pollable interface {
	PollKind() PollKind
	// PollReady reports whether the readiness condition holds now.
	PollReady() bool
	// PollAttach registers h to be notified when the source becomes ready.
	PollAttach(h *PollHook)
	// PollDetach removes a hook registered with PollAttach.
	PollDetach(h *PollHook)
}

// PollHook receives readiness notifications. The callback runs inside the
// source's critical section: it must not block and must not call back into the
// source.
type PollHook struct {
	fn func(src Pollable)
}

// NewPollHook creates a hook invoking fn on every notification.
func NewPollHook(fn func(src Pollable)) *PollHook {
	return &PollHook{fn: fn}
}

// PollList is the set of hooks attached to one source, guarded by the source's
// Spinlock.
type PollList struct {
	hooks []*PollHook
}

// Attach adds h. Attaching the same hook twice is a no-op.
func (l *PollList) Attach(h *PollHook) {
	for _, x := range l.hooks {
		if x == h {
			return
		}
	}
	l.hooks = append(l.hooks, h)
}

// Detach removes h.
func (l *PollList) Detach(h *PollHook) {
	for i, x := range l.hooks {
		if x == h {
			l.hooks = append(l.hooks[:i], l.hooks[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached hooks.
func (l *PollList) Len() int { return len(l.hooks) }

// Notify tells every attached hook that src became ready.
func (l *PollList) Notify(src Pollable) {
	for _, h := range l.hooks {
		h.fn(src)
	}
}
