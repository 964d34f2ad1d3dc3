// Package irq delivers interrupts over a NATS bus.
//
// A Controller maps interrupt lines to subjects. Raise publishes a Request on a
// line's subject; the handler connected to that line runs on the bus delivery
// goroutine with an interrupt context (kernel.WithISR), so it may only use the
// non-blocking entry points of the kernel primitives: posting events, releasing
// semaphores, TryPost on message queues, submitting work items.
//
// Handlers of all lines are serialized: at most one runs at a time.
package irq

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/observability"
)

const contentTypeHeader = "Content-Type"

// Handler services one interrupt line.
type Handler interface {
	HandleIRQ(ctx context.Context, req Request)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request)

func (f HandlerFunc) HandleIRQ(ctx context.Context, req Request) { f(ctx, req) }

type binding struct {
	line      Line
	subject   string
	h         Handler
	sub       *nats.Subscription
	enabled   atomic.Bool
	connected atomic.Bool
}

// Controller routes interrupt requests from the bus to line handlers. It is safe
// for concurrent use.
type Controller struct {
	nc      *nats.Conn
	cfg     config
	log     *observability.IRQLogger
	metrics *observability.KernelMetrics

	mu     sync.Mutex
	lines  map[Line]*binding
	closed bool

	dispatch sync.Mutex
}

// NewController creates a controller publishing and subscribing on nc. The
// controller does not own nc.
func NewController(nc *nats.Conn, opts ...Option) (*Controller, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ValidatePrefix(cfg.prefix); err != nil {
		return nil, fmt.Errorf("%w: %q", err, cfg.prefix)
	}
	return &Controller{
		nc:      nc,
		cfg:     cfg,
		log:     observability.NewIRQLogger(cfg.logger),
		metrics: observability.NewKernelMetrics(cfg.metrics),
		lines:   make(map[Line]*binding),
	}, nil
}

// Subject returns the bus subject of line.
func (c *Controller) Subject(line Line) string { return subject(c.cfg.prefix, line) }

// Connect subscribes h to line. The line starts enabled.
func (c *Controller) Connect(line Line, h Handler) error {
	kernel.Assert(h != nil, "irq.Connect", kernel.ErrInvalidArgument)
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.lines[line]; ok {
		return fmt.Errorf("%w: %d", ErrLineInUse, line)
	}

	b := &binding{line: line, subject: c.Subject(line), h: h}
	b.enabled.Store(true)
	b.connected.Store(true)

	sub, err := c.nc.Subscribe(b.subject, func(m *nats.Msg) { c.deliver(b, m) })
	if err != nil {
		c.log.LogLine(ctx, int(line), b.subject, false, err)
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	if err := c.nc.FlushTimeout(c.cfg.flushTimeout); err != nil {
		_ = sub.Unsubscribe()
		c.log.LogLine(ctx, int(line), b.subject, false, err)
		return fmt.Errorf("flush %s: %w", b.subject, err)
	}
	b.sub = sub
	c.lines[line] = b
	c.log.LogLine(ctx, int(line), b.subject, true, nil)
	return nil
}

// Disconnect unsubscribes the handler of line.
func (c *Controller) Disconnect(line Line) error {
	c.mu.Lock()
	b, ok := c.lines[line]
	if ok {
		delete(c.lines, line)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrLineNotConnected, line)
	}

	b.connected.Store(false)
	err := b.sub.Unsubscribe()
	if errors.Is(err, nats.ErrConnectionClosed) {
		err = nil
	}
	c.log.LogLine(context.Background(), int(line), b.subject, false, err)
	return err
}

// Enable resumes delivery on line.
func (c *Controller) Enable(line Line) error { return c.setEnabled(line, true) }

// Disable masks line. Requests raised while masked are dropped, not deferred.
func (c *Controller) Disable(line Line) error { return c.setEnabled(line, false) }

func (c *Controller) setEnabled(line Line, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.lines[line]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLineNotConnected, line)
	}
	b.enabled.Store(on)
	return nil
}

// IsEnabled reports whether line is connected and unmasked.
func (c *Controller) IsEnabled(line Line) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.lines[line]
	return ok && b.enabled.Load()
}

// Lines returns the connected lines in ascending order.
func (c *Controller) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.lines))
}

// Raise publishes a request on line. It never blocks and may be called from
// interrupt context. Delivery is asynchronous; a line with no handler drops the
// request.
func (c *Controller) Raise(ctx context.Context, line Line, value uint32) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, span := c.cfg.tracer.Start(ctx, "irq.raise",
		observability.WithSpanKind(observability.SpanKindProducer),
		observability.WithAttributes(map[string]any{"irq.line": int(line)}),
	)
	defer span.End()

	data, err := c.cfg.codec.Encode(Request{Line: line, Value: value, Raised: time.Now()})
	if err != nil {
		span.SetStatus(observability.SpanStatusError, err.Error())
		return fmt.Errorf("encode interrupt request: %w", err)
	}

	msg := nats.NewMsg(c.Subject(line))
	msg.Data = data
	msg.Header.Set(contentTypeHeader, c.cfg.codec.ContentType())
	carrier := make(map[string]string, 2)
	if err := c.cfg.tracer.Inject(ctx, carrier); err == nil {
		for k, v := range carrier {
			msg.Header.Set(k, v)
		}
	}

	if err := c.nc.PublishMsg(msg); err != nil {
		span.SetStatus(observability.SpanStatusError, err.Error())
		return fmt.Errorf("raise line %d: %w", line, err)
	}
	span.SetStatus(observability.SpanStatusOK, "")
	return nil
}

// Flush waits until the broker has received every request raised so far. Without
// a ctx deadline it waits at most the flush timeout.
func (c *Controller) Flush(ctx context.Context) error {
	kernel.MustBeThread(ctx, "irq.Flush")
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.flushTimeout)
		defer cancel()
	}
	return c.nc.FlushWithContext(ctx)
}

func (c *Controller) deliver(b *binding, m *nats.Msg) {
	ctx := kernel.WithISR(context.Background())
	line := int(b.line)

	var req Request
	if err := c.cfg.codec.Decode(m.Data, &req); err != nil {
		c.drop(ctx, line, "malformed request")
		return
	}
	switch {
	case !b.connected.Load():
		c.drop(ctx, line, "line disconnected")
		return
	case !b.enabled.Load():
		c.drop(ctx, line, "line disabled")
		return
	}
	req.Line = b.line

	carrier := make(map[string]string, len(m.Header))
	for k, vv := range m.Header {
		if len(vv) > 0 {
			carrier[k] = vv[0]
		}
	}
	ctx, _ = c.cfg.tracer.Extract(ctx, carrier)
	ctx, span := c.cfg.tracer.Start(ctx, "irq.handle",
		observability.WithSpanKind(observability.SpanKindConsumer),
		observability.WithAttributes(map[string]any{"irq.line": line}),
	)
	defer span.End()

	c.dispatch.Lock()
	defer c.dispatch.Unlock()
	if v, panicked := c.run(ctx, b.h, req); panicked {
		c.log.LogHandlerPanic(ctx, line, v)
		span.SetStatus(observability.SpanStatusError, fmt.Sprint(v))
	}
	c.metrics.RecordIRQ(line, true)
}

func (c *Controller) run(ctx context.Context, h Handler, req Request) (v any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			v, panicked = r, true
		}
	}()
	h.HandleIRQ(ctx, req)
	return nil, false
}

func (c *Controller) drop(ctx context.Context, line int, reason string) {
	c.metrics.RecordIRQ(line, false)
	c.log.LogDropped(ctx, line, reason)
}

// Close disconnects every line. Later calls return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	lines := c.lines
	c.lines = make(map[Line]*binding)
	c.mu.Unlock()

	var errs []error
	for _, b := range lines {
		b.connected.Store(false)
		if err := b.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", b.subject, err))
		}
	}
	return errors.Join(errs...)
}
