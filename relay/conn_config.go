package relay

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openmaple/maplelink/logger"
)

// Default companion endpoint.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 37393
)

// ConnectionConfig represents the configuration parameters for the link to the
// companion process.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host specifies the host of the companion process.
	host string

	// port specifies the TCP port number of the companion process.
	port int

	// connectTimeout bounds a single blocking connect attempt.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// ioTimeout bounds each send or receive on the established socket. It is kept
	// short so the driving loop keeps its bounded-latency character.
	// Defaults to 5 milliseconds.
	ioTimeout time.Duration

	// healthCheckInterval throttles liveness probes while connected.
	// Defaults to 5 seconds.
	healthCheckInterval time.Duration

	// initialBackoff is the delay before the first reconnect attempt. The delay
	// doubles on each failed attempt up to maxBackoff and resets on success.
	// Defaults to 1 second.
	initialBackoff time.Duration

	// maxBackoff caps the reconnect delay. Defaults to 30 seconds.
	maxBackoff time.Duration

	// maxLineLength bounds an incoming frame line to keep memory bounded on
	// malformed input. Defaults to 4096 bytes.
	maxLineLength int

	// notifier receives connect/disconnect/reconnect notifications.
	// Defaults to no notifications.
	notifier Notifier

	// logger provides a logger instance for link events and errors.
	logger logger.Logger

	// clock supplies the current time. Injectable for deterministic tests.
	clock func() time.Time

	// transportFactory builds the owned transport. The manager recreates the
	// transport through this factory on every connect attempt.
	transportFactory func(*ConnectionConfig) Transport
}

// NewConnectionConfig creates a connection configuration for the companion at the
// given host and port, applying the provided functional options on top of the
// defaults.
//
// Returns the initialized config and an error if the host, port, or any option
// value is invalid.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		connectTimeout:      3 * time.Second,
		ioTimeout:           5 * time.Millisecond,
		healthCheckInterval: 5 * time.Second,
		initialBackoff:      time.Second,
		maxBackoff:          30 * time.Second,
		maxLineLength:       4096,
		notifier:            nil,
		logger:              logger.GetLogger(),
		clock:               time.Now,
		transportFactory: func(cfg *ConnectionConfig) Transport {
			return NewTCPTransport(cfg)
		},
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Host returns the configured companion host.
func (cfg *ConnectionConfig) Host() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.host
}

// Port returns the configured companion port.
func (cfg *ConnectionConfig) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

// Addr returns the companion endpoint in host:port form.
func (cfg *ConnectionConfig) Addr() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{
		name:      name,
		applyFunc: f,
	}
}

// withHost sets the companion host.
// It returns a ConnOption that validates the host and updates the configuration.
func withHost(host string) ConnOption {
	return newConnOptFunc("withHost", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		// Check if it's a valid IP address
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		// If not an IP, check if it's a resolvable host name
		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

// withPort sets the companion TCP port.
// An error is returned if the port number is out of the valid range (1-65535).
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithConnectTimeout sets the timeout for a single blocking connect attempt.
// An error is returned if the timeout is outside the valid range (1-30 seconds).
//
// The default value is 3 seconds.
func WithConnectTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("connect timeout out of range [1s, 30s]")
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithIOTimeout sets the short deadline bounding each send or receive.
// An error is returned if the timeout is outside the valid range (1ms-1s).
//
// The default value is 5 milliseconds. Raising it trades driving-loop latency
// for fewer spurious failures on a congested link.
func WithIOTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithIOTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < time.Millisecond || val > time.Second {
			return errors.New("io timeout out of range [1ms, 1s]")
		}
		cfg.ioTimeout = val

		return nil
	})
}

// WithHealthCheckInterval sets the minimum time between liveness probes while
// connected. An error is returned if the interval is outside the valid range
// (100ms-60s).
//
// The default value is 5 seconds.
func WithHealthCheckInterval(val time.Duration) ConnOption {
	return newConnOptFunc("WithHealthCheckInterval", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 100*time.Millisecond || val > 60*time.Second {
			return errors.New("health check interval out of range [100ms, 60s]")
		}
		cfg.healthCheckInterval = val

		return nil
	})
}

// WithInitialBackoff sets the delay before the first reconnect attempt.
// An error is returned if the value is outside the valid range (10ms-10s).
//
// The default value is 1 second.
func WithInitialBackoff(val time.Duration) ConnOption {
	return newConnOptFunc("WithInitialBackoff", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 10*time.Millisecond || val > 10*time.Second {
			return errors.New("initial backoff out of range [10ms, 10s]")
		}
		cfg.initialBackoff = val

		return nil
	})
}

// WithMaxBackoff caps the reconnect delay.
// An error is returned if the value is outside the valid range (100ms-300s).
//
// The default value is 30 seconds.
func WithMaxBackoff(val time.Duration) ConnOption {
	return newConnOptFunc("WithMaxBackoff", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 100*time.Millisecond || val > 300*time.Second {
			return errors.New("max backoff out of range [100ms, 300s]")
		}
		cfg.maxBackoff = val

		return nil
	})
}

// WithMaxLineLength bounds an incoming frame line.
// An error is returned if the value is outside the valid range (1024-4096 bytes).
//
// The default value is 4096.
func WithMaxLineLength(val int) ConnOption {
	return newConnOptFunc("WithMaxLineLength", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 1024 || val > 4096 {
			return errors.New("max line length out of range [1024, 4096]")
		}
		cfg.maxLineLength = val

		return nil
	})
}

// WithNotifier sets the sink for connect/disconnect/reconnect notifications.
//
// The default is no notifications.
func WithNotifier(n Notifier) ConnOption {
	return newConnOptFunc("WithNotifier", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.notifier = n

		return nil
	})
}

// WithLogger sets the logger for the link.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.logger = l

		return nil
	})
}

// WithClock sets the monotonic time source used for backoff and health-check
// scheduling. Tests inject a fake clock to drive the state machine
// deterministically.
//
// The default is time.Now.
func WithClock(clock func() time.Time) ConnOption {
	return newConnOptFunc("WithClock", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}
		if clock == nil {
			return errors.New("clock is nil")
		}

		cfg.clock = clock

		return nil
	})
}

// WithTransportFactory sets the factory the manager uses to build its owned
// transport on every connect attempt.
//
// The default factory builds a TCPTransport for the configured endpoint.
func WithTransportFactory(factory func(*ConnectionConfig) Transport) ConnOption {
	return newConnOptFunc("WithTransportFactory", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}
		if factory == nil {
			return errors.New("transport factory is nil")
		}

		cfg.transportFactory = factory

		return nil
	})
}
