package observability

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType int

const (
	// Counter metrics only increase
	Counter MetricType = iota
	// Gauge metrics can go up or down
	Gauge
	// Histogram metrics track distributions
	Histogram
)

// Metric is one series. For histograms Value is the last observation, Sum the
// total of all observations and Count their number.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Sum       float64           `json:"sum,omitempty"`
	Count     uint64            `json:"count,omitempty"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricsCollector interface defines the contract for metrics collection
type MetricsCollector interface {
	IncrementCounter(name string, labels map[string]string)
	IncrementCounterBy(name string, value float64, labels map[string]string)

	SetGauge(name string, value float64, labels map[string]string)
	IncrementGauge(name string, labels map[string]string)
	DecrementGauge(name string, labels map[string]string)

	RecordHistogram(name string, value float64, labels map[string]string)

	GetMetrics() []Metric
	GetMetric(name string, labels map[string]string) (*Metric, bool)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// InMemoryMetricsCollector keeps every series in a map. It is meant for tests and
// for the daemon's status dump.
type InMemoryMetricsCollector struct {
	mu      sync.RWMutex
	metrics map[string]*Metric
	running bool
}

// NewInMemoryMetricsCollector creates an empty collector.
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		metrics: make(map[string]*Metric),
	}
}

// series returns the series for name and labels, creating it with typ. Callers
// hold c.mu.
func (c *InMemoryMetricsCollector) series(name string, typ MetricType, labels map[string]string) *Metric {
	key := metricKey(name, labels)
	m, ok := c.metrics[key]
	if !ok {
		m = &Metric{
			Name:   name,
			Type:   typ,
			Labels: maps.Clone(labels),
		}
		c.metrics[key] = m
	}
	m.Timestamp = time.Now()
	return m
}

func (c *InMemoryMetricsCollector) IncrementCounter(name string, labels map[string]string) {
	c.IncrementCounterBy(name, 1, labels)
}

func (c *InMemoryMetricsCollector) IncrementCounterBy(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series(name, Counter, labels).Value += value
}

func (c *InMemoryMetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series(name, Gauge, labels).Value = value
}

func (c *InMemoryMetricsCollector) IncrementGauge(name string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series(name, Gauge, labels).Value++
}

func (c *InMemoryMetricsCollector) DecrementGauge(name string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series(name, Gauge, labels).Value--
}

func (c *InMemoryMetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, Histogram, labels)
	m.Value = value
	m.Sum += value
	m.Count++
}

// GetMetrics returns a copy of every series.
func (c *InMemoryMetricsCollector) GetMetrics() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Metric, 0, len(c.metrics))
	for _, m := range c.metrics {
		cp := *m
		cp.Labels = maps.Clone(m.Labels)
		out = append(out, cp)
	}
	return out
}

// GetMetric returns a copy of one series.
func (c *InMemoryMetricsCollector) GetMetric(name string, labels map[string]string) (*Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[metricKey(name, labels)]
	if !ok {
		return nil, false
	}
	cp := *m
	cp.Labels = maps.Clone(m.Labels)
	return &cp, true
}

func (c *InMemoryMetricsCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	return nil
}

func (c *InMemoryMetricsCollector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// metricKey builds a key that does not depend on map iteration order.
func metricKey(name string, labels map[string]string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

var (
	defaultMetricsMu        sync.RWMutex
	defaultMetricsCollector MetricsCollector = NewInMemoryMetricsCollector()
)

// SetDefaultMetricsCollector sets the package-level metrics collector
func SetDefaultMetricsCollector(collector MetricsCollector) {
	defaultMetricsMu.Lock()
	defer defaultMetricsMu.Unlock()
	defaultMetricsCollector = collector
}

// GetDefaultMetricsCollector returns the package-level metrics collector
func GetDefaultMetricsCollector() MetricsCollector {
	defaultMetricsMu.RLock()
	defer defaultMetricsMu.RUnlock()
	return defaultMetricsCollector
}

// Metric names recorded by KernelMetrics.
const (
	MetricWorkSubmitted  = "work_items_submitted_total"
	MetricWorkCompleted  = "work_items_completed_total"
	MetricWorkCancelled  = "work_items_cancelled_total"
	MetricWorkPanics     = "work_handler_panics_total"
	MetricWorkQueueDepth = "work_queue_depth"
	MetricWorkDuration   = "work_handler_duration_ms"
	MetricIRQDelivered   = "irq_deliveries_total"
	MetricIRQDropped     = "irq_dropped_total"
	MetricBusConnected   = "irq_bus_connected"
)

// KernelMetrics records the standard series of the work queues and the interrupt
// controller.
type KernelMetrics struct {
	collector MetricsCollector
}

// NewKernelMetrics wraps collector, or the package default when nil.
func NewKernelMetrics(collector MetricsCollector) *KernelMetrics {
	if collector == nil {
		collector = GetDefaultMetricsCollector()
	}
	return &KernelMetrics{collector: collector}
}

// Collector returns the underlying collector.
func (m *KernelMetrics) Collector() MetricsCollector { return m.collector }

func (m *KernelMetrics) RecordWorkSubmitted(queue string) {
	m.collector.IncrementCounter(MetricWorkSubmitted, map[string]string{"queue": queue})
}

func (m *KernelMetrics) RecordWorkCompleted(queue string, d time.Duration) {
	labels := map[string]string{"queue": queue}
	m.collector.IncrementCounter(MetricWorkCompleted, labels)
	m.collector.RecordHistogram(MetricWorkDuration, float64(d.Nanoseconds())/1e6, labels)
}

func (m *KernelMetrics) RecordWorkCancelled(queue string) {
	m.collector.IncrementCounter(MetricWorkCancelled, map[string]string{"queue": queue})
}

func (m *KernelMetrics) RecordWorkPanic(queue string) {
	m.collector.IncrementCounter(MetricWorkPanics, map[string]string{"queue": queue})
}

func (m *KernelMetrics) RecordQueueDepth(queue string, depth int) {
	m.collector.SetGauge(MetricWorkQueueDepth, float64(depth), map[string]string{"queue": queue})
}

// RecordIRQ counts one interrupt on line, delivered to its handler or dropped
// because the line was disabled or unconnected.
func (m *KernelMetrics) RecordIRQ(line int, delivered bool) {
	labels := map[string]string{"line": strconv.Itoa(line)}
	if delivered {
		m.collector.IncrementCounter(MetricIRQDelivered, labels)
	} else {
		m.collector.IncrementCounter(MetricIRQDropped, labels)
	}
}

// RecordBusConnected records the interrupt bus connection state.
func (m *KernelMetrics) RecordBusConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.collector.SetGauge(MetricBusConnected, value, nil)
}
