package work

import "errors"

// Lifecycle errors
var (
	ErrAlreadyStarted = errors.New("work: queue already started")
	ErrNotStarted     = errors.New("work: queue not started")
	ErrStopped        = errors.New("work: queue stopped")
)
