package kernel

import (
	"errors"
	"fmt"
)

// Runtime outcomes
var (
	ErrTimeout          = errors.New("operation timed out")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrCancelled        = errors.New("cancelled")
)

// Contract violations, reported through Fault panics
var (
	ErrInvalidContext  = errors.New("blocking call from interrupt context")
	ErrUninitialized   = errors.New("object not initialized")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Fault is the panic value raised on a contract violation.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("kernel fault in %s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Assert panics with a Fault for op when cond is false.
func Assert(cond bool, op string, err error) {
	if !cond {
		panic(&Fault{Op: op, Err: err})
	}
}

// Faultf panics with a Fault wrapping err and a formatted detail message.
func Faultf(op string, err error, format string, args ...any) {
	panic(&Fault{Op: op, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))})
}
