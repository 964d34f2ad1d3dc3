package work

import (
	"github.com/a2y-d5l/go-rtkernel/observability"
	"github.com/a2y-d5l/go-rtkernel/tick"
)

// Option configures a Queue.
type Option func(*config)

type config struct {
	name     string
	priority int
	logger   observability.Logger
	metrics  observability.MetricsCollector
	tracer   observability.Tracer
	clock    *tick.Clock
}

func defaultConfig() config {
	return config{
		name:     "workq",
		priority: 0,
		logger:   observability.Default(),
		tracer:   observability.NoopTracer(),
		clock:    tick.Default(),
	}
}

// WithName sets the queue name used in logs, metrics and spans.
func WithName(name string) Option { return func(c *config) { c.name = name } }

// WithPriority sets the worker thread priority. Lower is more urgent.
func WithPriority(p int) Option { return func(c *config) { c.priority = p } }

// WithLogger injects a logger.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// WithMetrics records queue metrics into collector instead of the package default.
func WithMetrics(collector observability.MetricsCollector) Option {
	return func(c *config) { c.metrics = collector }
}

// WithTracer starts one span per handler run.
func WithTracer(t observability.Tracer) Option { return func(c *config) { c.tracer = t } }

// WithClock sets the clock delayed items compute their expiry on.
func WithClock(clock *tick.Clock) Option { return func(c *config) { c.clock = clock } }
