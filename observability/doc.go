// Package observability provides structured logging, metrics and tracing for the
// kernel's service layer: work queues, the interrupt controller and the host.
//
// The synchronization primitives themselves (event, sem, msgq, poll) never log;
// they are called from interrupt context and inside critical sections.
//
// # Logging
//
// Logger wraps log/slog with optional sampling of Debug and Info records:
//
//	logger := observability.NewLogger(observability.LoggerConfig{
//		Level:  slog.LevelInfo,
//		Format: observability.JSON,
//		Output: os.Stdout,
//	})
//
//	logger.WithContext(ctx).Info("work handler finished",
//		observability.WorkQueue("sys"),
//		observability.Duration("handler_duration", d),
//	)
//
// WithContext picks up the interrupt marker and thread priority set with
// kernel.WithISR and kernel.WithPriority, and the trace of the active span.
//
// # Metrics
//
// KernelMetrics records the standard series (see the Metric* constants) into any
// MetricsCollector; InMemoryMetricsCollector serves tests and the daemon's status
// dump.
//
// # Tracing
//
// Work queues start one span per handler run, and the interrupt controller
// carries the raiser's span context across the bus in message headers with
// Inject and Extract.
package observability
