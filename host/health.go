package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/a2y-d5l/go-rtkernel/observability"
	"github.com/a2y-d5l/go-rtkernel/work"
)

// Healthy returns an error if the host is not operational. It only inspects
// local state; DeepHealthCheck also probes the bus.
func (h *Host) Healthy(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch {
	case !h.started.Load():
		return fmt.Errorf("%w: host not started", ErrHostUnhealthy)
	case h.closed.Load():
		return fmt.Errorf("%w: host already closed", ErrHostUnhealthy)
	case h.nc == nil:
		return fmt.Errorf("%w: bus client not initialized", ErrHostUnhealthy)
	case h.nc.Status() != nats.CONNECTED:
		return fmt.Errorf("%w: bus client not connected", ErrHostUnhealthy)
	default:
		return nil
	}
}

// DeepHealthCheck runs Healthy, then verifies the embedded bus accepts clients
// and the connection round-trips.
func (h *Host) DeepHealthCheck(ctx context.Context) error {
	if err := h.Healthy(ctx); err != nil {
		return err
	}

	h.mu.RLock()
	srv, nc := h.srv, h.nc
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.ServerReadyTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Ready(ctx); err != nil {
			return fmt.Errorf("%w: bus not ready", ErrHostUnhealthy)
		}
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: bus round-trip: %v", ErrHostUnhealthy, err)
	}
	return nil
}

// Close stops every work queue, disconnects the interrupt lines, drains the bus
// client and shuts the embedded bus down. Queued work that has not started is
// discarded.
func (h *Host) Close(ctx context.Context) error {
	if !h.started.Load() || !h.closed.CompareAndSwap(false, true) {
		return ErrHostClosed
	}
	h.log.Info("closing rtkernel host")
	start := time.Now()

	h.mu.Lock()
	queues := h.queues
	ctrl, nc, srv := h.irq, h.nc, h.srv
	drainTO := h.cfg.DrainTimeout
	maxWait := h.cfg.ServerShutdownMaxWait
	h.mu.Unlock()

	var merr multiErr

	// interrupts first so no handler submits into a stopping queue
	if err := ctrl.Close(); err != nil {
		merr.add(fmt.Errorf("interrupt controller: %w", err))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		g.Go(func() error {
			if err := q.Stop(gctx); err != nil && !errors.Is(err, work.ErrStopped) {
				return fmt.Errorf("stop work queue %s: %w", q.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		merr.add(err)
	}

	if nc != nil {
		done := make(chan error, 1)
		go func() { done <- nc.Drain() }()
		select {
		case err := <-done:
			if err != nil {
				merr.add(fmt.Errorf("bus drain: %w", err))
			}
		case <-time.After(drainTO):
			merr.add(fmt.Errorf("bus drain timeout after %s", drainTO))
			nc.Close()
		case <-ctx.Done():
			merr.add(fmt.Errorf("bus drain canceled: %w", ctx.Err()))
			nc.Close()
		}
	}

	if srv != nil {
		if err := srv.ShutdownAndWait(ctx, maxWait); err != nil {
			merr.add(err)
		}
	}

	h.mu.Lock()
	h.nc, h.srv = nil, nil
	h.mu.Unlock()
	h.metrics.RecordBusConnected(false)

	if len(merr) > 0 {
		h.log.Error("rtkernel host closed with errors", observability.ErrorField(merr))
		return merr
	}
	h.log.Info("rtkernel host closed", observability.Duration("elapsed", time.Since(start)))
	return nil
}

// QueueStats returns the stats of every queue the host created, keyed by name.
// The stopped queues remain readable after Close.
func (h *Host) QueueStats() map[string]work.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := make(map[string]work.Stats, len(h.queues))
	for _, q := range h.queues {
		stats[q.Name()] = q.Stats()
	}
	return stats
}

// multiErr accumulates multiple errors.
type multiErr []error

func (m *multiErr) add(err error) { *m = append(*m, err) }

func (m multiErr) Error() string {
	if len(m) == 0 {
		return "no errors"
	}
	if len(m) == 1 {
		return m[0].Error()
	}
	msg := fmt.Sprintf("%d errors: %s", len(m), m[0].Error())
	for _, e := range m[1:] {
		msg += "; " + e.Error()
	}
	return msg
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As.
func (m multiErr) Unwrap() []error { return m }
