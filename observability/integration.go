package observability

import (
	"context"
	"log/slog"
	"time"
)

// WorkLogger logs the lifecycle of one work queue.
type WorkLogger struct {
	Logger
	queue string
}

// NewWorkLogger creates a logger tagged with the queue name.
func NewWorkLogger(logger Logger, queue string) *WorkLogger {
	return &WorkLogger{
		Logger: logger.With(WorkQueue(queue)),
		queue:  queue,
	}
}

// LogStarted logs the worker thread starting.
func (wl *WorkLogger) LogStarted(ctx context.Context, priority int) {
	wl.WithContext(ctx).Info("work queue started",
		Priority(priority),
		Operation("work-start"),
	)
}

// LogStopped logs the worker thread exiting. discarded is the number of queued
// items dropped without running.
func (wl *WorkLogger) LogStopped(ctx context.Context, discarded int, err error) {
	logger := wl.WithContext(ctx).With(
		slog.Int("discarded", discarded),
		Operation("work-stop"),
	)
	if err != nil {
		logger.Warn("work queue stopped before the worker exited", ErrorField(err))
		return
	}
	logger.Info("work queue stopped")
}

// LogHandlerDone logs one completed handler run at debug level.
func (wl *WorkLogger) LogHandlerDone(ctx context.Context, item string, d time.Duration) {
	wl.WithContext(ctx).Debug("work handler finished",
		WorkItem(item),
		Duration("handler_duration", d),
	)
}

// LogHandlerPanic logs a handler panic recovered by the worker.
func (wl *WorkLogger) LogHandlerPanic(ctx context.Context, item string, v any) {
	wl.WithContext(ctx).Error("work handler panic recovered",
		WorkItem(item),
		PanicValue(v),
		Operation("work-run"),
	)
}

// IRQLogger logs interrupt bus activity.
type IRQLogger struct {
	Logger
}

// NewIRQLogger creates a logger for an interrupt controller.
func NewIRQLogger(logger Logger) *IRQLogger {
	return &IRQLogger{Logger: logger.With(slog.String("component", "irq"))}
}

// LogConnection logs the bus connection changing state.
func (il *IRQLogger) LogConnection(ctx context.Context, serverURL string, connected bool) {
	logger := il.WithContext(ctx).With(
		NATSConnection(serverURL),
		slog.Bool("connected", connected),
	)
	if connected {
		logger.Info("interrupt bus connected", Operation("irq-connect"))
		return
	}
	logger.Warn("interrupt bus disconnected", Operation("irq-disconnect"))
}

// LogLine logs a line being connected or disconnected.
func (il *IRQLogger) LogLine(ctx context.Context, line int, subject string, connected bool, err error) {
	logger := il.WithContext(ctx).With(IRQLine(line), NATSSubject(subject))
	switch {
	case err != nil:
		logger.Error("interrupt line subscription failed", ErrorField(err))
	case connected:
		logger.Info("interrupt line connected")
	default:
		logger.Info("interrupt line disconnected")
	}
}

// LogDropped logs an interrupt that reached no handler.
func (il *IRQLogger) LogDropped(ctx context.Context, line int, reason string) {
	il.WithContext(ctx).Debug("interrupt dropped",
		IRQLine(line),
		slog.String("reason", reason),
	)
}

// LogHandlerPanic logs a panic recovered from an interrupt handler.
func (il *IRQLogger) LogHandlerPanic(ctx context.Context, line int, v any) {
	il.WithContext(ctx).Error("interrupt handler panic recovered",
		IRQLine(line),
		PanicValue(v),
	)
}
