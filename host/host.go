// Package host assembles a running kernel: the interrupt bus, the interrupt
// controller and the system work queue, with shared logging, metrics and
// tracing.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/a2y-d5l/go-rtkernel/internal/embeddednats"
	"github.com/a2y-d5l/go-rtkernel/irq"
	"github.com/a2y-d5l/go-rtkernel/observability"
	"github.com/a2y-d5l/go-rtkernel/work"
)

var (
	// ErrHostClosed indicates the host was already closed (or never started).
	ErrHostClosed = errors.New("host is closed")
	// ErrHostUnhealthy indicates the bus server or client is not ready.
	ErrHostUnhealthy = errors.New("host is not healthy")
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid host configuration")
)

// Host owns the interrupt bus, the interrupt controller and the work queues it
// creates. It is safe for concurrent use.
type Host struct {
	mu      sync.RWMutex
	cfg     config
	log     observability.Logger
	metrics *observability.KernelMetrics

	srv    *embeddednats.Server // nil when dialing an external bus
	nc     *nats.Conn
	irq    *irq.Controller
	sysq   *work.Queue
	queues []*work.Queue

	started atomic.Bool
	closed  atomic.Bool
}

// New starts the interrupt bus (embedded unless WithBusURL is set), connects to
// it, and starts the system work queue.
func New(ctx context.Context, opts ...Option) (*Host, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = observability.Default()
	}
	log := cfg.logger.With(slog.String("component", "host"))
	metrics := observability.NewKernelMetrics(cfg.metrics)
	irqLog := observability.NewIRQLogger(cfg.logger)

	var srv *embeddednats.Server
	url := cfg.BusURL
	if url == "" {
		var err error
		srv, err = embeddednats.New(embeddednats.Options{
			Host:       cfg.Host,
			Port:       cfg.Port,
			MaxPayload: cfg.MaxPayload,
			Name:       cfg.ClientName + "-bus",
		})
		if err != nil {
			return nil, err
		}
		srv.Start()

		readyCtx, cancel := context.WithTimeout(ctx, cfg.ServerReadyTimeout)
		defer cancel()
		if err := srv.Ready(readyCtx); err != nil {
			_ = srv.ShutdownAndWait(context.Background(), cfg.ServerShutdownMaxWait)
			return nil, fmt.Errorf("interrupt bus not ready: %w", err)
		}
		url = srv.ClientURL()
	}
	shutdown := func() {
		if srv != nil {
			_ = srv.ShutdownAndWait(context.Background(), cfg.ServerShutdownMaxWait)
		}
	}

	nc, err := nats.Connect(url,
		nats.Name(cfg.ClientName),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWaitMin),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.RecordBusConnected(false)
			irqLog.LogConnection(context.Background(), url, false)
			if err != nil {
				log.Warn("interrupt bus connection lost", observability.ErrorField(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.RecordBusConnected(true)
			irqLog.LogConnection(context.Background(), nc.ConnectedUrl(), true)
		}),
		nats.ClosedHandler(func(*nats.Conn) { log.Debug("interrupt bus connection closed") }),
	)
	if err != nil {
		shutdown()
		return nil, fmt.Errorf("interrupt bus connect: %w", err)
	}
	if err := nc.FlushTimeout(cfg.ConnectFlushTimeout); err != nil {
		nc.Close()
		shutdown()
		return nil, fmt.Errorf("initial flush: %w", err)
	}
	metrics.RecordBusConnected(true)
	irqLog.LogConnection(ctx, url, true)

	ctrl, err := irq.NewController(nc,
		irq.WithSubjectPrefix(cfg.SubjectPrefix),
		irq.WithFlushTimeout(cfg.ConnectFlushTimeout),
		irq.WithLogger(cfg.logger),
		irq.WithMetrics(cfg.metrics),
		irq.WithTracer(cfg.tracer),
	)
	if err != nil {
		nc.Close()
		shutdown()
		return nil, err
	}

	h := &Host{cfg: cfg, log: log, metrics: metrics, srv: srv, nc: nc, irq: ctrl}
	sysq, err := h.NewWorkQueue(ctx, cfg.SystemQueue, cfg.SystemPriority)
	if err != nil {
		_ = ctrl.Close()
		nc.Close()
		shutdown()
		return nil, err
	}
	h.sysq = sysq
	h.started.Store(true)

	log.Info("rtkernel host started",
		observability.NATSConnection(url),
		slog.Bool("embedded", srv != nil),
		slog.Int("port", h.Port()),
		observability.WorkQueue(cfg.SystemQueue),
	)
	return h, nil
}

// NewWorkQueue creates and starts a work queue sharing the host's logger,
// metrics and tracer. Close stops it.
func (h *Host) NewWorkQueue(ctx context.Context, name string, priority int) (*work.Queue, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	opts := []work.Option{
		work.WithName(name),
		work.WithPriority(priority),
		work.WithLogger(h.cfg.logger),
		work.WithTracer(h.cfg.tracer),
	}
	if h.cfg.metrics != nil {
		opts = append(opts, work.WithMetrics(h.cfg.metrics))
	}
	q := work.NewQueue(opts...)
	if err := q.Start(ctx); err != nil {
		return nil, fmt.Errorf("start work queue %s: %w", name, err)
	}

	h.mu.Lock()
	h.queues = append(h.queues, q)
	h.mu.Unlock()
	return q, nil
}

// IRQ returns the interrupt controller.
func (h *Host) IRQ() *irq.Controller {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.irq
}

// SystemQueue returns the system work queue.
func (h *Host) SystemQueue() *work.Queue {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sysq
}

// Conn returns the bus connection. Use with caution; the host owns it.
func (h *Host) Conn() *nats.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.nc
}

// Metrics returns the host's metric recorder.
func (h *Host) Metrics() *observability.KernelMetrics { return h.metrics }

// Port returns the port the embedded bus listens on, or -1 when the bus is
// external or stopped.
func (h *Host) Port() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.srv == nil {
		return -1
	}
	return h.srv.Port()
}
