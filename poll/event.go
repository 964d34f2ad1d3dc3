package poll

import (
	"sync/atomic"

	"github.com/a2y-d5l/go-rtkernel/kernel"
)

// State is the readiness recorded on an Event by a poll.
type State int32

const (
	// NotReady means no poll has seen the source ready since the last ResetState.
	NotReady State = iota
	// Ready means a poll saw the source ready.
	Ready
	// Timeout means a poll gave up on the source when its timeout elapsed.
	Timeout
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "not-ready"
	case Ready:
		return "ready"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Event pairs one pollable source with the state a poll recorded for it. States
// are edge-triggered: a poll never clears them, so callers reusing an Event must
// call ResetState before the next poll.
type Event struct {
	src   kernel.Pollable
	state atomic.Int32
}

// NewEvent creates an Event observing src.
func NewEvent(src kernel.Pollable) *Event {
	kernel.Assert(src != nil, "poll.NewEvent", kernel.ErrInvalidArgument)
	return &Event{src: src}
}

// Kind returns the kind of condition the source exposes.
func (e *Event) Kind() kernel.PollKind { return e.src.PollKind() }

// Source returns the observed source.
func (e *Event) Source() kernel.Pollable { return e.src }

// State returns the recorded state.
func (e *Event) State() State { return State(e.state.Load()) }

// ResetState sets the state back to NotReady.
func (e *Event) ResetState() { e.state.Store(int32(NotReady)) }

func (e *Event) mark(s State) { e.state.Store(int32(s)) }

// markTimeout records Timeout unless a poll already saw the source ready.
func (e *Event) markTimeout() {
	e.state.CompareAndSwap(int32(NotReady), int32(Timeout))
}
