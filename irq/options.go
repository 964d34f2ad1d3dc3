package irq

import (
	"time"

	"github.com/a2y-d5l/go-rtkernel/observability"
)

// Option configures a Controller.
type Option func(*config)

type config struct {
	prefix       string
	codec        Codec
	flushTimeout time.Duration
	logger       observability.Logger
	metrics      observability.MetricsCollector
	tracer       observability.Tracer
}

func defaultConfig() config {
	return config{
		prefix:       "irq",
		codec:        JSONCodec,
		flushTimeout: 2 * time.Second,
		logger:       observability.Default(),
		tracer:       observability.NoopTracer(),
	}
}

// WithSubjectPrefix sets the subject prefix; line n listens on "<prefix>.n".
func WithSubjectPrefix(prefix string) Option { return func(c *config) { c.prefix = prefix } }

// WithCodec overrides the request codec (JSON by default).
func WithCodec(cd Codec) Option { return func(c *config) { c.codec = cd } }

// WithFlushTimeout bounds how long Connect waits for the broker to confirm a
// subscription.
func WithFlushTimeout(d time.Duration) Option { return func(c *config) { c.flushTimeout = d } }

// WithLogger injects a logger.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// WithMetrics records delivery counts into collector instead of the package default.
func WithMetrics(collector observability.MetricsCollector) Option {
	return func(c *config) { c.metrics = collector }
}

// WithTracer propagates traces from Raise to the handler through message headers.
func WithTracer(t observability.Tracer) Option { return func(c *config) { c.tracer = t } }
