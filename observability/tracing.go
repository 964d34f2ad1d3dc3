package observability

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// SpanKind represents the type of span
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	// SpanKindProducer marks the side raising an interrupt over the bus.
	SpanKindProducer
	// SpanKindConsumer marks interrupt delivery and work handler runs.
	SpanKindConsumer
)

// SpanStatus represents the status of a span
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

// Span is one timed operation.
type Span interface {
	SetAttribute(key string, value any)
	SetStatus(status SpanStatus, description string)
	AddEvent(name string, attributes map[string]any)
	End()
	Context() SpanContext
	IsRecording() bool
}

// SpanContext identifies a span within a trace.
type SpanContext struct {
	TraceID  string `json:"trace_id"`
	SpanID   string `json:"span_id"`
	ParentID string `json:"parent_id,omitempty"`
}

// Carrier header keys used by Inject and Extract.
const (
	TraceIDHeader = "Trace-Id"
	SpanIDHeader  = "Span-Id"
)

// ErrNoSpanContext is returned by Inject when ctx carries no span.
var ErrNoSpanContext = errors.New("observability: no span context in context")

// Tracer creates spans and moves their context across process boundaries.
type Tracer interface {
	// Start creates a span. If ctx carries a span context the new span joins
	// its trace.
	Start(ctx context.Context, operationName string, opts ...SpanOption) (context.Context, Span)
	Extract(ctx context.Context, carrier map[string]string) (context.Context, error)
	Inject(ctx context.Context, carrier map[string]string) error
}

// SpanOption configures span creation
type SpanOption func(*SpanConfig)

// SpanConfig holds span configuration
type SpanConfig struct {
	Kind       SpanKind
	Attributes map[string]any
}

func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *SpanConfig) { c.Kind = kind }
}

func WithAttributes(attrs map[string]any) SpanOption {
	return func(c *SpanConfig) {
		if c.Attributes == nil {
			c.Attributes = make(map[string]any, len(attrs))
		}
		maps.Copy(c.Attributes, attrs)
	}
}

// SpanEvent represents an event within a span
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}

// InMemorySpan records everything in memory for inspection by tests.
type InMemorySpan struct {
	mu          sync.RWMutex
	name        string
	context     SpanContext
	kind        SpanKind
	status      SpanStatus
	description string
	attributes  map[string]any
	events      []SpanEvent
	startTime   time.Time
	endTime     time.Time
	ended       bool
}

// NewInMemorySpan creates a started span.
func NewInMemorySpan(name string, sc SpanContext, kind SpanKind) *InMemorySpan {
	return &InMemorySpan{
		name:       name,
		context:    sc,
		kind:       kind,
		attributes: make(map[string]any),
		startTime:  time.Now(),
	}
}

func (s *InMemorySpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

func (s *InMemorySpan) SetStatus(status SpanStatus, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.description = description
}

func (s *InMemorySpan) AddEvent(name string, attributes map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SpanEvent{
		Name:       name,
		Timestamp:  time.Now(),
		Attributes: maps.Clone(attributes),
	})
}

// End completes the span. Later calls are ignored.
func (s *InMemorySpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.endTime = time.Now()
		s.ended = true
	}
}

func (s *InMemorySpan) Context() SpanContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context
}

func (s *InMemorySpan) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.ended
}

func (s *InMemorySpan) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *InMemorySpan) Kind() SpanKind { return s.kind }

// Status returns the status and its description.
func (s *InMemorySpan) Status() (SpanStatus, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.description
}

// Attribute returns one attribute.
func (s *InMemorySpan) Attribute(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attributes[key]
	return v, ok
}

// Duration returns the time between start and End, or zero while recording.
func (s *InMemorySpan) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ended {
		return 0
	}
	return s.endTime.Sub(s.startTime)
}

// InMemoryTracer keeps every span it starts.
type InMemoryTracer struct {
	mu    sync.RWMutex
	spans map[string]*InMemorySpan
	ids   atomic.Uint64
}

// NewInMemoryTracer creates an empty tracer.
func NewInMemoryTracer() *InMemoryTracer {
	return &InMemoryTracer{
		spans: make(map[string]*InMemorySpan),
	}
}

func (t *InMemoryTracer) nextID(prefix string) string {
	return fmt.Sprintf("%s-%x-%d", prefix, time.Now().UnixNano(), t.ids.Add(1))
}

func (t *InMemoryTracer) Start(ctx context.Context, operationName string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{Kind: SpanKindInternal}
	for _, opt := range opts {
		opt(config)
	}

	sc := SpanContext{SpanID: t.nextID("span")}
	if parent, ok := SpanFromContext(ctx); ok {
		sc.TraceID = parent.TraceID
		sc.ParentID = parent.SpanID
	} else {
		sc.TraceID = t.nextID("trace")
	}

	span := NewInMemorySpan(operationName, sc, config.Kind)
	maps.Copy(span.attributes, config.Attributes)

	t.mu.Lock()
	t.spans[sc.SpanID] = span
	t.mu.Unlock()

	return ContextWithSpan(ctx, sc), span
}

func (t *InMemoryTracer) Extract(ctx context.Context, carrier map[string]string) (context.Context, error) {
	traceID, spanID := carrier[TraceIDHeader], carrier[SpanIDHeader]
	if traceID == "" || spanID == "" {
		return ctx, nil
	}
	return ContextWithSpan(ctx, SpanContext{TraceID: traceID, SpanID: spanID}), nil
}

func (t *InMemoryTracer) Inject(ctx context.Context, carrier map[string]string) error {
	sc, ok := SpanFromContext(ctx)
	if !ok {
		return ErrNoSpanContext
	}
	carrier[TraceIDHeader] = sc.TraceID
	carrier[SpanIDHeader] = sc.SpanID
	return nil
}

// GetSpans returns all spans keyed by span ID.
func (t *InMemoryTracer) GetSpans() map[string]*InMemorySpan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.spans)
}

// SpansNamed returns the spans started with operationName.
func (t *InMemoryTracer) SpansNamed(operationName string) []*InMemorySpan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*InMemorySpan
	for _, s := range t.spans {
		if s.Name() == operationName {
			out = append(out, s)
		}
	}
	return out
}

type spanContextKey struct{}

// ContextWithSpan returns a copy of ctx carrying sc.
func ContextWithSpan(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextKey{}, sc)
}

// SpanFromContext extracts the span context from a context
func SpanFromContext(ctx context.Context) (SpanContext, bool) {
	sc, ok := ctx.Value(spanContextKey{}).(SpanContext)
	return sc, ok
}

// noopTracer starts spans that record nothing.
type noopTracer struct{}

type noopSpan struct{ sc SpanContext }

func (noopSpan) SetAttribute(string, any)        {}
func (noopSpan) SetStatus(SpanStatus, string)    {}
func (noopSpan) AddEvent(string, map[string]any) {}
func (noopSpan) End()                            {}
func (s noopSpan) Context() SpanContext          { return s.sc }
func (noopSpan) IsRecording() bool               { return false }

func (noopTracer) Start(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	sc, _ := SpanFromContext(ctx)
	return ctx, noopSpan{sc: sc}
}

func (noopTracer) Extract(ctx context.Context, _ map[string]string) (context.Context, error) {
	return ctx, nil
}

func (noopTracer) Inject(context.Context, map[string]string) error { return nil }

// NoopTracer returns a tracer that records nothing. Components use it when no
// tracer is configured.
func NoopTracer() Tracer { return noopTracer{} }
