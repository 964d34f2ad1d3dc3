// Package rtkernel provides real-time kernel synchronization primitives for Go
// programs that model firmware: event groups, counting semaphores, bounded
// message queues, multi-source polling and work queues with delayed and
// poll-triggered items.
//
// The primitives live in focused subpackages:
//
//   - github.com/a2y-d5l/go-rtkernel/tick    - tick clock and timeouts
//   - github.com/a2y-d5l/go-rtkernel/kernel  - execution contexts, critical sections, wait queues
//   - github.com/a2y-d5l/go-rtkernel/event   - event groups
//   - github.com/a2y-d5l/go-rtkernel/sem     - counting semaphores
//   - github.com/a2y-d5l/go-rtkernel/msgq    - bounded message queues
//   - github.com/a2y-d5l/go-rtkernel/poll    - polling several sources at once
//   - github.com/a2y-d5l/go-rtkernel/work    - work queues
//   - github.com/a2y-d5l/go-rtkernel/irq     - interrupt delivery over NATS
//   - github.com/a2y-d5l/go-rtkernel/host    - a running kernel with its interrupt bus
//
// This package re-exports the common types and constructors.
//
// A goroutine is a thread. Interrupt handlers run with a context marked by
// WithISR; from there only the non-blocking entry points may be used, and a
// blocking call panics with a *Fault.
//
// Example usage:
//
//	h, err := rtkernel.NewHost(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	rx := rtkernel.NewEventGroup()
//	_ = h.IRQ().Connect(3, rtkernel.IRQHandlerFunc(func(ctx context.Context, req rtkernel.IRQRequest) {
//		rx.Post(rtkernel.Events(req.Value))
//	}))
//
//	got := rx.WaitAnyFor(ctx, 0x1, rtkernel.For(100*time.Millisecond))
package rtkernel
