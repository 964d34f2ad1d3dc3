package kernel

import "context"

type ctxKey int

const (
	isrKey ctxKey = iota
	priorityKey
)

// WithISR marks ctx as interrupt context.
func WithISR(parent context.Context) context.Context {
	return context.WithValue(parent, isrKey, true)
}

// InISR reports whether ctx represents interrupt context.
func InISR(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(isrKey).(bool)
	return v
}

// WithPriority attaches a thread priority to ctx. Lower values are more urgent.
func WithPriority(parent context.Context, priority int) context.Context {
	return context.WithValue(parent, priorityKey, priority)
}

// Priority returns the thread priority carried by ctx, or 0.
func Priority(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	v, _ := ctx.Value(priorityKey).(int)
	return v
}

// MustBeThread faults unless ctx is a schedulable thread context.
func MustBeThread(ctx context.Context, op string) {
	Assert(ctx != nil, op, ErrInvalidContext)
	Assert(!InISR(ctx), op, ErrInvalidContext)
}
