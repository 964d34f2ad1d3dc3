package host

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/a2y-d5l/go-rtkernel/irq"
	"github.com/a2y-d5l/go-rtkernel/observability"
)

// config holds all tunables for the Host (via functional options).
type config struct {
	// Bus server
	Host                  string
	Port                  int // -1 selects a random free port
	MaxPayload            int32
	BusURL                string // dial an external bus instead of embedding one
	ServerReadyTimeout    time.Duration
	ServerShutdownMaxWait time.Duration

	// Bus client
	ClientName          string
	ConnectTimeout      time.Duration
	ConnectFlushTimeout time.Duration
	ReconnectWaitMin    time.Duration
	DrainTimeout        time.Duration

	// Kernel
	SubjectPrefix  string
	SystemQueue    string
	SystemPriority int

	logger  observability.Logger
	metrics observability.MetricsCollector
	tracer  observability.Tracer
}

func defaultConfig() config {
	return config{
		Host:                  "127.0.0.1",
		Port:                  -1,
		ServerReadyTimeout:    5 * time.Second,
		ServerShutdownMaxWait: 5 * time.Second,

		ClientName:          "rtkernel",
		ConnectTimeout:      2 * time.Second,
		ConnectFlushTimeout: 2 * time.Second,
		ReconnectWaitMin:    250 * time.Millisecond,
		DrainTimeout:        5 * time.Second,

		SubjectPrefix:  "irq",
		SystemQueue:    "sysworkq",
		SystemPriority: 0,

		tracer: observability.NoopTracer(),
	}
}

// Config is the file form of the host configuration.
type Config struct {
	Bus  BusConfig  `yaml:"bus"`
	IRQ  IRQConfig  `yaml:"irq"`
	Work WorkConfig `yaml:"work"`
	Log  LogConfig  `yaml:"log"`
}

// BusConfig configures the interrupt bus.
type BusConfig struct {
	URL            string        `yaml:"url"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxPayload     int32         `yaml:"max_payload"`
	ClientName     string        `yaml:"client_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadyTimeout   time.Duration `yaml:"ready_timeout"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
}

// IRQConfig configures the interrupt controller.
type IRQConfig struct {
	SubjectPrefix string `yaml:"subject_prefix"`
}

// WorkConfig configures the system work queue.
type WorkConfig struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

// LogConfig configures the host logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the file configuration matching the option defaults.
func DefaultConfig() Config {
	d := defaultConfig()
	return Config{
		Bus: BusConfig{
			Host:           d.Host,
			Port:           d.Port,
			ClientName:     d.ClientName,
			ConnectTimeout: d.ConnectTimeout,
			ReadyTimeout:   d.ServerReadyTimeout,
			DrainTimeout:   d.DrainTimeout,
		},
		IRQ:  IRQConfig{SubjectPrefix: d.SubjectPrefix},
		Work: WorkConfig{Name: d.SystemQueue, Priority: d.SystemPriority},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	switch {
	case c.Bus.Port < -1 || c.Bus.Port > 65535:
		return fmt.Errorf("%w: bus.port %d out of range", ErrInvalidConfig, c.Bus.Port)
	case c.Bus.MaxPayload < 0:
		return fmt.Errorf("%w: bus.max_payload must not be negative", ErrInvalidConfig)
	case c.Work.Name == "":
		return fmt.Errorf("%w: work.name is required", ErrInvalidConfig)
	}
	if err := irq.ValidatePrefix(c.IRQ.SubjectPrefix); err != nil {
		return fmt.Errorf("%w: irq.subject_prefix: %w", ErrInvalidConfig, err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := parseFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// Logger builds the logger the log section describes.
func (c Config) Logger() observability.Logger {
	level, _ := parseLevel(c.Log.Level)
	format, _ := parseFormat(c.Log.Format)
	return observability.NewLogger(observability.LoggerConfig{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	})
}

// Options converts the file configuration to host options.
func (c Config) Options() []Option {
	opts := []Option{
		WithHost(c.Bus.Host),
		WithPort(c.Bus.Port),
		WithMaxPayload(c.Bus.MaxPayload),
		WithClientName(c.Bus.ClientName),
		WithSubjectPrefix(c.IRQ.SubjectPrefix),
		WithSystemQueue(c.Work.Name, c.Work.Priority),
		WithLogger(c.Logger()),
	}
	if c.Bus.URL != "" {
		opts = append(opts, WithBusURL(c.Bus.URL))
	}
	if c.Bus.ConnectTimeout > 0 {
		opts = append(opts, WithConnectTimeout(c.Bus.ConnectTimeout))
	}
	if c.Bus.ReadyTimeout > 0 {
		opts = append(opts, WithServerReadyTimeout(c.Bus.ReadyTimeout))
	}
	if c.Bus.DrainTimeout > 0 {
		opts = append(opts, WithDrainTimeout(c.Bus.DrainTimeout))
	}
	return opts
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

func parseFormat(s string) (observability.LogFormat, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return observability.Text, nil
	case "json":
		return observability.JSON, nil
	default:
		return 0, fmt.Errorf("%w: log.format %q", ErrInvalidConfig, s)
	}
}
