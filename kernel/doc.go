// Package kernel is the host-kernel boundary of go-rtkernel.
//
// It supplies the small set of services the synchronization primitives consume:
//
// • Execution contexts: goroutines are threads; a context marked with WithISR
// stands for interrupt context, where only non-blocking calls are legal
//
// • Spinlock/Guard: the short critical section protecting every primitive's state
//
// • WaitQueue: priority-ordered (FIFO among equals) suspension lists with
// timeout and cancellation handling
//
// • Pollable/PollList: readiness notification plumbing for the poll package
//
// • Sleep, SleepUntil, Yield and Spawn: thin thread pass-throughs
//
// Contract violations (blocking from interrupt context, waiting on an object that
// was not built by its constructor, invalid arguments) panic with a *Fault. They
// are programming errors to be caught in development, not runtime conditions.
package kernel
