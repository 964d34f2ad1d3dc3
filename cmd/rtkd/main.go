// Command rtkd runs a kernel host with a simulated UART and a heartbeat.
//
// A device goroutine raises the UART interrupt line with one received byte per
// request. The interrupt handler pushes the byte into a message queue and posts
// an event flag. A consumer thread waits on the flag and a poll-triggered work
// item drains the queue, while a delayed item logs a heartbeat.
//
//	rtkd -config rtkd.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a2y-d5l/go-rtkernel/event"
	"github.com/a2y-d5l/go-rtkernel/host"
	"github.com/a2y-d5l/go-rtkernel/irq"
	"github.com/a2y-d5l/go-rtkernel/kernel"
	"github.com/a2y-d5l/go-rtkernel/msgq"
	"github.com/a2y-d5l/go-rtkernel/observability"
	"github.com/a2y-d5l/go-rtkernel/poll"
	"github.com/a2y-d5l/go-rtkernel/tick"
	"github.com/a2y-d5l/go-rtkernel/work"
)

const (
	uartLine irq.Line = 1

	flagRx      event.Events = 1 << 0
	flagOverrun event.Events = 1 << 1
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	rate := flag.Duration("rate", 200*time.Millisecond, "interval between simulated UART bytes")
	flag.Parse()

	cfg := host.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = host.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "rtkd:", err)
			os.Exit(2)
		}
	}
	logger := cfg.Logger()
	observability.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *rate); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("rtkd failed", observability.ErrorField(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg host.Config, logger observability.Logger, rate time.Duration) error {
	metrics := observability.NewInMemoryMetricsCollector()
	if err := metrics.Start(ctx); err != nil {
		return err
	}
	defer metrics.Stop(context.Background())

	h, err := host.New(ctx, append(cfg.Options(), host.WithMetrics(metrics))...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Close(closeCtx); err != nil {
			logger.Error("host close failed", observability.ErrorField(err))
		}
		for name, st := range h.QueueStats() {
			logger.Info("work queue stats",
				observability.WorkQueue(name),
				slog.Uint64("submitted", st.Submitted),
				slog.Uint64("completed", st.Completed),
				slog.Uint64("panics", st.Panics),
			)
		}
	}()

	rxFifo := msgq.New[byte](16)
	uart := event.New()

	if err := h.IRQ().Connect(uartLine, irq.HandlerFunc(func(_ context.Context, req irq.Request) {
		if !rxFifo.TryPost(byte(req.Value)) {
			uart.Post(flagOverrun)
			return
		}
		uart.Post(flagRx)
	})); err != nil {
		return err
	}

	sysq := h.SystemQueue()
	rxEvents := []*poll.Event{poll.NewEvent(rxFifo)}
	var drain *work.PollItem
	drain = sysq.NewPollItem("uart-drain", work.HandlerFunc(func(ctx context.Context) error {
		var line []byte
		for {
			b, ok := rxFifo.TryGet()
			if !ok {
				break
			}
			line = append(line, b)
		}
		if len(line) > 0 {
			logger.WithContext(ctx).Info("uart rx", slog.Int("bytes", len(line)), slog.String("data", string(line)))
		}
		rxEvents[0].ResetState()
		return drain.Submit(rxEvents, tick.Forever)
	}))
	if err := drain.Submit(rxEvents, tick.Forever); err != nil {
		return err
	}

	var beats int
	var heartbeat *work.Delayed
	heartbeat = sysq.NewDelayed("heartbeat", work.HandlerFunc(func(ctx context.Context) error {
		beats++
		logger.WithContext(ctx).Debug("heartbeat", slog.Int("beat", beats))
		heartbeat.Schedule(tick.For(time.Second))
		return nil
	}))
	heartbeat.Schedule(tick.For(time.Second))
	defer heartbeat.Cancel()

	g, gctx := errgroup.WithContext(ctx)

	// simulated device
	g.Go(func() error {
		msg := []byte("hello from the uart\n")
		t := time.NewTicker(rate)
		defer t.Stop()
		for i := 0; ; i++ {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.C:
				if err := h.IRQ().Raise(gctx, uartLine, uint32(msg[i%len(msg)])); err != nil {
					return err
				}
			}
		}
	})

	// consumer thread: counts receptions and reports overruns
	g.Go(func() error {
		tctx := kernel.WithPriority(gctx, 5)
		var received int
		for {
			got := uart.WaitAnyFor(tctx, flagRx|flagOverrun, tick.For(5*time.Second))
			switch {
			case gctx.Err() != nil:
				return gctx.Err()
			case got == 0:
				logger.Warn("uart idle",
					observability.Duration("idle", 5*time.Second),
					slog.Int("received", received),
				)
			case got.Has(flagOverrun):
				logger.Warn("uart overrun", slog.Int("fifo", rxFifo.Size()))
			default:
				received++
			}
		}
	})

	return g.Wait()
}
