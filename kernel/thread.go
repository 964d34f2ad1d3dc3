package kernel

import (
	"context"
	"runtime"
	"time"

	"github.com/a2y-d5l/go-rtkernel/tick"
)

// Sleep suspends the calling thread for timeout. NoWait only yields.
func Sleep(ctx context.Context, timeout tick.Timeout) error {
	if timeout.IsNoWait() {
		Yield()
		return nil
	}
	MustBeThread(ctx, "kernel.Sleep")

	var expired <-chan time.Time
	if !timeout.IsForever() {
		t := time.NewTimer(timeout.Duration())
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-expired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepUntil suspends the calling thread until deadline on the default clock.
func SleepUntil(ctx context.Context, deadline tick.Instant) error {
	return Sleep(ctx, tick.Until(deadline))
}

// Yield lets other runnable threads execute.
func Yield() { runtime.Gosched() }

// Thread is a handle to a goroutine started with Spawn.
type Thread struct {
	done chan struct{}
}

// Spawn starts fn as a thread with the given priority.
func Spawn(ctx context.Context, priority int, fn func(ctx context.Context)) *Thread {
	th := &Thread{done: make(chan struct{})}
	tctx := WithPriority(context.WithValue(ctx, isrKey, false), priority)
	go func() {
		defer close(th.done)
		fn(tctx)
	}()
	return th
}

// Join waits for the thread to return.
func (th *Thread) Join(ctx context.Context) error {
	select {
	case <-th.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
