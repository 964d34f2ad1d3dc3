package host

import (
	"time"

	"github.com/a2y-d5l/go-rtkernel/observability"
)

// Option configures the Host.
type Option func(*config)

// WithHost sets the listen host for the embedded bus (default 127.0.0.1).
func WithHost(h string) Option { return func(c *config) { c.Host = h } }

// WithPort sets the bus port. Use WithRandomPort for dynamic.
func WithPort(p int) Option { return func(c *config) { c.Port = p } }

// WithRandomPort selects a random free port for the embedded bus.
func WithRandomPort() Option { return func(c *config) { c.Port = -1 } }

// WithMaxPayload sets the bus max payload size (bytes).
func WithMaxPayload(bytes int32) Option { return func(c *config) { c.MaxPayload = bytes } }

// WithBusURL dials an existing bus instead of embedding one.
func WithBusURL(url string) Option { return func(c *config) { c.BusURL = url } }

// WithClientName sets the bus client name.
func WithClientName(name string) Option { return func(c *config) { c.ClientName = name } }

// WithConnectTimeout sets the bus client connect timeout.
func WithConnectTimeout(d time.Duration) Option { return func(c *config) { c.ConnectTimeout = d } }

// WithReconnectWait sets the fixed reconnect wait.
func WithReconnectWait(d time.Duration) Option { return func(c *config) { c.ReconnectWaitMin = d } }

// WithDrainTimeout sets how long Close waits for the client drain and the bus
// shutdown.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *config) {
		c.DrainTimeout = d
		c.ServerShutdownMaxWait = d
	}
}

// WithServerReadyTimeout sets how long to wait for the embedded bus to be ready.
func WithServerReadyTimeout(d time.Duration) Option {
	return func(c *config) { c.ServerReadyTimeout = d }
}

// WithSubjectPrefix sets the interrupt subject prefix (default "irq").
func WithSubjectPrefix(prefix string) Option { return func(c *config) { c.SubjectPrefix = prefix } }

// WithSystemQueue names the system work queue and sets its worker priority.
func WithSystemQueue(name string, priority int) Option {
	return func(c *config) {
		c.SystemQueue = name
		c.SystemPriority = priority
	}
}

// WithLogger injects a logger shared by the host and its components.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// WithMetrics injects a metrics collector shared by the host and its components.
func WithMetrics(collector observability.MetricsCollector) Option {
	return func(c *config) { c.metrics = collector }
}

// WithTracer injects a tracer shared by the interrupt controller and work queues.
func WithTracer(t observability.Tracer) Option { return func(c *config) { c.tracer = t } }
