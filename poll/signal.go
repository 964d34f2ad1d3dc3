package poll

import "github.com/a2y-d5l/go-rtkernel/kernel"

// Signal is a one-shot, level-held notification carrying an integer result. Once
// raised it stays raised until Reset.
type Signal struct {
	lock    kernel.Spinlock
	raised  bool
	result  int
	pollers kernel.PollList
}

// NewSignal creates a signal that has not been raised.
func NewSignal() *Signal { return &Signal{} }

// Raise marks the signal raised with result and notifies pollers. Raising an
// already raised signal replaces the result. Raise never blocks and may be called
// from interrupt context.
func (s *Signal) Raise(result int) {
	g := s.lock.Lock()
	defer g.Unlock()

	s.raised = true
	s.result = result
	s.pollers.Notify(s)
}

// Reset clears the raised state.
func (s *Signal) Reset() {
	g := s.lock.Lock()
	defer g.Unlock()

	s.raised = false
	s.result = 0
}

// Check returns the result and whether the signal is raised.
func (s *Signal) Check() (int, bool) {
	g := s.lock.Lock()
	defer g.Unlock()
	return s.result, s.raised
}

// PollKind implements kernel.Pollable.
func (s *Signal) PollKind() kernel.PollKind { return kernel.PollSignal }

// PollReady implements kernel.Pollable: the signal has been raised.
func (s *Signal) PollReady() bool {
	_, raised := s.Check()
	return raised
}

// PollAttach implements kernel.Pollable.
func (s *Signal) PollAttach(h *kernel.PollHook) {
	g := s.lock.Lock()
	defer g.Unlock()
	s.pollers.Attach(h)
}

// PollDetach implements kernel.Pollable.
func (s *Signal) PollDetach(h *kernel.PollHook) {
	g := s.lock.Lock()
	defer g.Unlock()
	s.pollers.Detach(h)
}
