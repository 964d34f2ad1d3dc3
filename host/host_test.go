package host

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/go-rtkernel/internal/embeddednats"
	"github.com/a2y-d5l/go-rtkernel/irq"
	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/observability"
	"github.com/a2y-d5l/go-rtkernel/work"
)

func newTestHost(t *testing.T, opts ...Option) (*Host, *observability.InMemoryMetricsCollector) {
	t.Helper()
	metrics := observability.NewInMemoryMetricsCollector()
	var logs bytes.Buffer
	opts = append([]Option{
		WithMetrics(metrics),
		WithLogger(observability.NewLogger(observability.LoggerConfig{
			Level:  slog.LevelDebug,
			Format: observability.JSON,
			Output: &logs,
		})),
	}, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h, err := New(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h, metrics
}

func TestHost_StartHealthyClose(t *testing.T) {
	h, metrics := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.Healthy(ctx))
	require.NoError(t, h.DeepHealthCheck(ctx))
	assert.Positive(t, h.Port())
	assert.NotNil(t, h.Conn())
	assert.Equal(t, "sysworkq", h.SystemQueue().Name())

	m, ok := metrics.GetMetric(observability.MetricBusConnected, nil)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Value)

	require.NoError(t, h.Close(ctx))
	assert.ErrorIs(t, h.Close(ctx), ErrHostClosed)
	assert.ErrorIs(t, h.Healthy(ctx), ErrHostUnhealthy)
	assert.Equal(t, -1, h.Port())

	_, err := h.NewWorkQueue(ctx, "late", 0)
	assert.ErrorIs(t, err, ErrHostClosed)

	m, _ = metrics.GetMetric(observability.MetricBusConnected, nil)
	assert.Equal(t, 0.0, m.Value)
}

func TestHost_InterruptDefersToSystemQueue(t *testing.T) {
	h, _ := newTestHost(t, WithSystemQueue("bottom-half", 2))
	ran := make(chan context.Context, 1)

	item := h.SystemQueue().NewItem("service-uart", work.HandlerFunc(func(ctx context.Context) error {
		ran <- ctx
		return nil
	}))
	require.NoError(t, h.IRQ().Connect(9, irq.HandlerFunc(func(ctx context.Context, _ irq.Request) {
		if !kernel.InISR(ctx) {
			t.Error("handler ran outside interrupt context")
		}
		item.Submit()
	})))

	require.NoError(t, h.IRQ().Raise(context.Background(), 9, 0))
	select {
	case ctx := <-ran:
		assert.False(t, kernel.InISR(ctx))
		assert.Equal(t, 2, kernel.Priority(ctx))
	case <-time.After(5 * time.Second):
		t.Fatal("deferred work did not run")
	}
	assert.Equal(t, "irq.9", h.IRQ().Subject(9))
}

func TestHost_NewWorkQueueIsStoppedOnClose(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	q, err := h.NewWorkQueue(ctx, "sensors", 1)
	require.NoError(t, err)
	done := make(chan struct{})
	require.True(t, q.NewItem("sample", work.HandlerFunc(func(context.Context) error {
		close(done)
		return nil
	})).Submit())
	<-done
	require.NoError(t, q.Drain(ctx))

	stats := h.QueueStats()
	require.Contains(t, stats, "sensors")
	require.Contains(t, stats, "sysworkq")
	assert.Equal(t, uint64(1), stats["sensors"].Completed)

	require.NoError(t, h.Close(ctx))
	assert.ErrorIs(t, q.Drain(ctx), work.ErrStopped)

	stats = h.QueueStats()
	require.Contains(t, stats, "sensors", "stats survive Close")
	assert.Equal(t, uint64(1), stats["sensors"].Completed)
}

func TestHost_CloseToleratesStoppedQueue(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()

	require.NoError(t, h.SystemQueue().Stop(ctx))
	assert.NoError(t, h.Close(ctx))
}

func TestHost_ExternalBus(t *testing.T) {
	srv, err := embeddednats.New(embeddednats.DefaultOptions())
	require.NoError(t, err)
	srv.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, srv.Ready(ctx))
	t.Cleanup(func() { _ = srv.ShutdownAndWait(context.Background(), 5*time.Second) })

	h, _ := newTestHost(t, WithBusURL(srv.ClientURL()), WithSubjectPrefix("board.irq"))
	assert.Equal(t, -1, h.Port())
	require.NoError(t, h.DeepHealthCheck(ctx))
	assert.Equal(t, "board.irq.1", h.IRQ().Subject(1))

	require.NoError(t, h.Close(context.Background()))
	// the external bus outlives the host
	require.NoError(t, srv.Ready(ctx))
}

func TestNew_InvalidSubjectPrefix(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := New(ctx,
		WithMetrics(observability.NewInMemoryMetricsCollector()),
		WithSubjectPrefix("irq.>"),
	)
	assert.ErrorIs(t, err, irq.ErrInvalidPrefix)
}

func TestMultiErr(t *testing.T) {
	var m multiErr
	assert.Equal(t, "no errors", m.Error())

	m.add(ErrHostUnhealthy)
	assert.Equal(t, ErrHostUnhealthy.Error(), m.Error())

	m.add(context.Canceled)
	assert.Contains(t, m.Error(), "2 errors")
	assert.ErrorIs(t, m, context.Canceled)
}
