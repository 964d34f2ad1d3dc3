// Package embeddednats runs the interrupt bus broker inside the host process.
package embeddednats

import (
	"context"
	"fmt"
	"net"
	"time"

	nserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Options configures the embedded broker.
type Options struct {
	Host       string
	Port       int // -1 picks a free port
	MaxPayload int32
	Name       string
	Logging    bool
}

// DefaultOptions listens on a free loopback port with broker logging off.
func DefaultOptions() Options {
	return Options{Host: "127.0.0.1", Port: -1, Name: "rtkernel-bus"}
}

// Server wraps a nats-server instance carrying interrupt requests.
type Server struct {
	s *nserver.Server
}

func New(opts Options) (*Server, error) {
	ns, err := nserver.NewServer(&nserver.Options{
		ServerName:            opts.Name,
		Host:                  opts.Host,
		Port:                  opts.Port,
		MaxPayload:            opts.MaxPayload,
		NoSigs:                true,
		NoLog:                 !opts.Logging,
		DisableShortFirstPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("interrupt bus create: %w", err)
	}
	if opts.Logging {
		ns.ConfigureLogger()
	}
	return &Server{s: ns}, nil
}

// Start runs the broker in its own goroutine.
func (e *Server) Start() { go e.s.Start() }

// ClientURL returns the nats:// URL clients connect to.
func (e *Server) ClientURL() string { return e.s.ClientURL() }

// Ready blocks until a client can connect or ctx expires.
func (e *Server) Ready(ctx context.Context) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()

	for {
		if e.probe() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// probe opens and closes a throwaway client connection.
func (e *Server) probe() bool {
	nc, err := nats.Connect(e.s.ClientURL(), nats.Timeout(100*time.Millisecond), nats.NoReconnect())
	if err != nil {
		return false
	}
	nc.Close()
	return true
}

// Connect dials the broker with opts appended to a named client.
func (e *Server) Connect(name string, opts ...nats.Option) (*nats.Conn, error) {
	nc, err := nats.Connect(e.s.ClientURL(), append([]nats.Option{nats.Name(name)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("interrupt bus connect: %w", err)
	}
	return nc, nil
}

// NumClients returns the number of connected clients.
func (e *Server) NumClients() int { return e.s.NumClients() }

// ShutdownAndWait stops the broker and waits up to maxWait for it to exit.
func (e *Server) ShutdownAndWait(ctx context.Context, maxWait time.Duration) error {
	e.s.Shutdown()
	wait := make(chan struct{})
	go func() { e.s.WaitForShutdown(); close(wait) }()
	select {
	case <-wait:
		return nil
	case <-time.After(maxWait):
		return fmt.Errorf("interrupt bus shutdown timeout after %s", maxWait)
	case <-ctx.Done():
		return fmt.Errorf("interrupt bus shutdown canceled: %w", ctx.Err())
	}
}

// Port returns the bound TCP port, or 0 before the listener is up.
func (e *Server) Port() int {
	if a := e.s.Addr(); a != nil {
		if ta, ok := a.(*net.TCPAddr); ok {
			return ta.Port
		}
	}
	return 0
}
