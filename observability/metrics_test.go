package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMetricsCollector(t *testing.T) {
	c := NewInMemoryMetricsCollector()
	labels := map[string]string{"queue": "sys", "kind": "delayed"}

	c.IncrementCounter("runs", labels)
	c.IncrementCounterBy("runs", 2, map[string]string{"kind": "delayed", "queue": "sys"})
	m, ok := c.GetMetric("runs", labels)
	require.True(t, ok)
	assert.Equal(t, Counter, m.Type)
	assert.Equal(t, 3.0, m.Value, "label order must not split a series")

	c.SetGauge("depth", 4, nil)
	c.IncrementGauge("depth", nil)
	c.DecrementGauge("depth", nil)
	c.DecrementGauge("depth", nil)
	m, ok = c.GetMetric("depth", nil)
	require.True(t, ok)
	assert.Equal(t, 3.0, m.Value)

	c.RecordHistogram("latency", 2, nil)
	c.RecordHistogram("latency", 4, nil)
	m, ok = c.GetMetric("latency", nil)
	require.True(t, ok)
	assert.Equal(t, Histogram, m.Type)
	assert.Equal(t, 4.0, m.Value)
	assert.Equal(t, 6.0, m.Sum)
	assert.Equal(t, uint64(2), m.Count)

	assert.Len(t, c.GetMetrics(), 3)
	_, ok = c.GetMetric("missing", nil)
	assert.False(t, ok)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
}

func TestInMemoryMetricsCollector_ReturnsCopies(t *testing.T) {
	c := NewInMemoryMetricsCollector()
	c.IncrementCounter("x", map[string]string{"a": "1"})

	m, _ := c.GetMetric("x", map[string]string{"a": "1"})
	m.Labels["a"] = "2"
	m.Value = 100

	again, _ := c.GetMetric("x", map[string]string{"a": "1"})
	assert.Equal(t, "1", again.Labels["a"])
	assert.Equal(t, 1.0, again.Value)
}

func TestInMemoryMetricsCollector_Concurrent(t *testing.T) {
	c := NewInMemoryMetricsCollector()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				c.IncrementCounter("n", nil)
			}
		}()
	}
	wg.Wait()
	m, ok := c.GetMetric("n", nil)
	require.True(t, ok)
	assert.Equal(t, 4000.0, m.Value)
}

func TestKernelMetrics(t *testing.T) {
	c := NewInMemoryMetricsCollector()
	km := NewKernelMetrics(c)
	assert.Same(t, c, km.Collector())

	km.RecordWorkSubmitted("sys")
	km.RecordWorkSubmitted("sys")
	km.RecordWorkCompleted("sys", 3*time.Millisecond)
	km.RecordWorkCancelled("sys")
	km.RecordWorkPanic("sys")
	km.RecordQueueDepth("sys", 1)
	km.RecordIRQ(5, true)
	km.RecordIRQ(5, false)
	km.RecordBusConnected(true)

	q := map[string]string{"queue": "sys"}
	get := func(name string, labels map[string]string) float64 {
		t.Helper()
		m, ok := c.GetMetric(name, labels)
		require.True(t, ok, name)
		return m.Value
	}
	assert.Equal(t, 2.0, get(MetricWorkSubmitted, q))
	assert.Equal(t, 1.0, get(MetricWorkCompleted, q))
	assert.Equal(t, 3.0, get(MetricWorkDuration, q))
	assert.Equal(t, 1.0, get(MetricWorkCancelled, q))
	assert.Equal(t, 1.0, get(MetricWorkPanics, q))
	assert.Equal(t, 1.0, get(MetricWorkQueueDepth, q))
	assert.Equal(t, 1.0, get(MetricIRQDelivered, map[string]string{"line": "5"}))
	assert.Equal(t, 1.0, get(MetricIRQDropped, map[string]string{"line": "5"}))
	assert.Equal(t, 1.0, get(MetricBusConnected, nil))
}

func TestKernelMetrics_DefaultCollector(t *testing.T) {
	prev := GetDefaultMetricsCollector()
	t.Cleanup(func() { SetDefaultMetricsCollector(prev) })

	c := NewInMemoryMetricsCollector()
	SetDefaultMetricsCollector(c)
	km := NewKernelMetrics(nil)
	km.RecordWorkCancelled("q")

	_, ok := c.GetMetric(MetricWorkCancelled, map[string]string{"queue": "q"})
	assert.True(t, ok)
}
