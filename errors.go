package rtkernel

import (
	"github.com/a2y-d5l/go-rtkernel/host"
	"github.com/a2y-d5l/go-rtkernel/irq"
	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/msgq"
	"github.com/a2y-d5l/go-rtkernel/work"
)

// Runtime outcomes
var (
	ErrTimeout          = kernel.ErrTimeout
	ErrCapacityExceeded = kernel.ErrCapacityExceeded
	ErrCancelled        = kernel.ErrCancelled
	ErrFlushed          = msgq.ErrFlushed
)

// Contract violations, carried by *Fault panics
var (
	ErrInvalidContext  = kernel.ErrInvalidContext
	ErrUninitialized   = kernel.ErrUninitialized
	ErrInvalidArgument = kernel.ErrInvalidArgument
)

// Lifecycle
var (
	ErrQueueStopped = work.ErrStopped
	ErrHostClosed   = host.ErrHostClosed
	ErrIRQClosed    = irq.ErrClosed
)
