package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/a2y-d5l/go-rtkernel/kernel"
)

// LogFormat selects the handler used by NewLogger.
type LogFormat int

const (
	// JSON writes one JSON object per record.
	JSON LogFormat = iota
	// Text writes logfmt-style key=value records.
	Text
)

// Logger is the structured logger used across the kernel packages.
type Logger interface {
	Debug(msg string, fields ...slog.Attr)
	Info(msg string, fields ...slog.Attr)
	Warn(msg string, fields ...slog.Attr)
	Error(msg string, fields ...slog.Attr)
	With(fields ...slog.Attr) Logger
	// WithContext adds the execution context carried by ctx: interrupt marker,
	// thread priority and the active trace, when present.
	WithContext(ctx context.Context) Logger
	Log(ctx context.Context, level slog.Level, msg string, fields ...slog.Attr)
}

// LoggerConfig holds configuration for creating a logger.
type LoggerConfig struct {
	Level    slog.Level
	Format   LogFormat
	Output   io.Writer
	Sampling *SamplingConfig
}

// SamplingConfig thins out Debug and Info records. Warn and Error are never
// sampled.
type SamplingConfig struct {
	Enabled      bool
	Rate         float64 // 0.0-1.0, share of records kept
	MaxPerSecond int
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	SetDefaultLogger(NewLogger(LoggerConfig{
		Level:  slog.LevelInfo,
		Format: Text,
		Output: os.Stderr,
	}))
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(l Logger) {
	defaultLogger.Store(&l)
}

// Default returns the package-level logger.
func Default() Logger {
	return *defaultLogger.Load()
}

func Debug(msg string, fields ...slog.Attr) { Default().Debug(msg, fields...) }
func Info(msg string, fields ...slog.Attr)  { Default().Info(msg, fields...) }
func Warn(msg string, fields ...slog.Attr)  { Default().Warn(msg, fields...) }
func Error(msg string, fields ...slog.Attr) { Default().Error(msg, fields...) }

type logger struct {
	slogger  *slog.Logger
	sampling *sampler
}

// NewLogger creates a slog-backed Logger.
func NewLogger(config LoggerConfig) Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level}
	var handler slog.Handler
	switch config.Format {
	case JSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	var s *sampler
	if config.Sampling != nil && config.Sampling.Enabled {
		s = &sampler{config: config.Sampling}
	}

	return &logger{
		slogger:  slog.New(handler),
		sampling: s,
	}
}

func (l *logger) Debug(msg string, fields ...slog.Attr) { l.log(slog.LevelDebug, msg, fields...) }
func (l *logger) Info(msg string, fields ...slog.Attr)  { l.log(slog.LevelInfo, msg, fields...) }
func (l *logger) Warn(msg string, fields ...slog.Attr)  { l.log(slog.LevelWarn, msg, fields...) }
func (l *logger) Error(msg string, fields ...slog.Attr) { l.log(slog.LevelError, msg, fields...) }

func (l *logger) With(fields ...slog.Attr) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logger{
		slogger:  l.slogger.With(attrArgs(fields)...),
		sampling: l.sampling,
	}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	var fields []slog.Attr
	if kernel.InISR(ctx) {
		fields = append(fields, slog.Bool("kernel.isr", true))
	}
	if p := kernel.Priority(ctx); p != 0 {
		fields = append(fields, Priority(p))
	}
	if sc, ok := SpanFromContext(ctx); ok {
		fields = append(fields, TraceID(sc.TraceID))
	}
	return l.With(fields...)
}

func (l *logger) Log(ctx context.Context, level slog.Level, msg string, fields ...slog.Attr) {
	if l.sampling != nil && !l.sampling.shouldLog(level) {
		return
	}
	l.slogger.LogAttrs(ctx, level, msg, fields...)
}

func (l *logger) log(level slog.Level, msg string, fields ...slog.Attr) {
	l.Log(context.Background(), level, msg, fields...)
}

func attrArgs(fields []slog.Attr) []any {
	args := make([]any, len(fields))
	for i, a := range fields {
		args[i] = a
	}
	return args
}

type sampler struct {
	config   *SamplingConfig
	counter  atomic.Uint64
	lastSec  atomic.Int64
	secCount atomic.Uint64
}

func (s *sampler) shouldLog(level slog.Level) bool {
	if level >= slog.LevelWarn {
		return true
	}

	if s.config.MaxPerSecond > 0 {
		now := time.Now().Unix()
		last := s.lastSec.Load()
		if now != last {
			if s.lastSec.CompareAndSwap(last, now) {
				s.secCount.Store(1)
			}
		} else if int(s.secCount.Add(1)) > s.config.MaxPerSecond {
			return false
		}
	}

	if s.config.Rate < 1.0 {
		n := s.counter.Add(1)
		if float64(n%100)/100.0 >= s.config.Rate {
			return false
		}
	}
	return true
}

// Field helpers for consistent keys.

func NATSSubject(subject string) slog.Attr { return slog.String("nats.subject", subject) }
func NATSConnection(url string) slog.Attr  { return slog.String("nats.connection", url) }

// WorkQueue names the work queue a record concerns.
func WorkQueue(name string) slog.Attr { return slog.String("work.queue", name) }

// WorkItem names a work item.
func WorkItem(name string) slog.Attr { return slog.String("work.item", name) }

// IRQLine is an interrupt line number.
func IRQLine(line int) slog.Attr { return slog.Int("irq.line", line) }

// EventMask renders an event bitmask in hex.
func EventMask(mask uint32) slog.Attr { return slog.String("event.mask", fmt.Sprintf("%#08x", mask)) }

func Priority(p int) slog.Attr { return slog.Int("kernel.priority", p) }

func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }

func Operation(op string) slog.Attr { return slog.String("operation", op) }

// ErrorField records err under "error". A nil error is recorded as empty.
func ErrorField(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func PanicValue(v any) slog.Attr { return slog.Any("panic", v) }

func TraceID(traceID string) slog.Attr { return slog.String("trace_id", traceID) }

func QueueDepth(depth int) slog.Attr { return slog.Int("queue_depth", depth) }
