package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmaple/maplelink/logger"
	"github.com/openmaple/maplelink/maple"
)

// Manager is the polled connection-lifecycle state machine over the owned
// Transport. One driving thread calls Update once per tick; Update advances the
// machine by at most one transition and never blocks beyond the short deadlines
// bounded inside the transport (a connect attempt may take up to the configured
// connect timeout).
//
// Send and Receive may run on a different thread than the one driving Update;
// the transport's internal lock is the sole serialization point for socket
// access, and the manager's own mutex guards its state fields.
type Manager struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	mu              sync.Mutex
	state           atomic.Uint32
	enabled         bool
	closed          bool
	transport       Transport
	stateEnteredAt  time.Time
	lastHealthCheck time.Time
	backoff         time.Duration
	handlers        []StateChangeHandler

	broadcaster *stateBroadcaster
	metrics     ConnectionMetrics
	clock       func() time.Time
}

// NewManager creates a Manager for the companion described by cfg.
// The manager starts disabled; call SetEnabled(true) to start connecting.
func NewManager(cfg *ConnectionConfig) (*Manager, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	m := &Manager{
		cfg:         cfg,
		logger:      cfg.logger,
		clock:       cfg.clock,
		backoff:     cfg.initialBackoff,
		broadcaster: newStateBroadcaster(),
	}

	m.state.Store(uint32(StateDisabled))
	m.stateEnteredAt = m.clock()

	if cfg.notifier != nil {
		adapter := NewNotificationAdapter(cfg.notifier)
		m.handlers = append(m.handlers, adapter.HandleStateChange)
	}

	return m, nil
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	return ConnState(m.state.Load())
}

// IsConnected reports whether the link is in the connected state.
func (m *Manager) IsConnected() bool {
	return m.State().IsConnected()
}

// IsEnabled reports whether the feature is enabled.
func (m *Manager) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.enabled
}

// Metrics returns the link metrics.
func (m *Manager) Metrics() *ConnectionMetrics {
	return &m.metrics
}

// AddStateChangeHandler registers handlers invoked on every state transition.
//
// Handlers run in blocking mode on the thread driving the transition.
func (m *Manager) AddStateChangeHandler(handlers ...StateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, handlers...)
}

// Subscribe returns a channel of state changes and a cancel function.
// Events are dropped, not blocked on, when the buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan StateChange, func()) {
	id, ch := m.broadcaster.subscribe(buffer)
	return ch, func() { m.broadcaster.unsubscribe(id) }
}

// SetEnabled toggles the feature. Disabling from any state synchronously
// releases the owned transport before the manager reports the disabled state, so
// no lingering socket remains open. Re-enabling always re-enters at the
// disconnected state, never a stale connected assumption. Idempotent.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.enabled == enabled {
		return
	}
	m.enabled = enabled

	if enabled {
		if m.State() == StateDisabled {
			m.enterState(StateDisconnected)
		}
		return
	}

	m.releaseTransport()
	if m.State() != StateDisabled {
		m.enterState(StateDisabled)
	}
}

// Update advances the state machine by at most one transition. It is meant to be
// called once per polling tick by a single driving thread.
func (m *Manager) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	switch m.State() {
	case StateDisabled:
		if m.enabled {
			m.enterState(StateDisconnected)
		}

	case StateDisconnected:
		if !m.enabled {
			m.enterState(StateDisabled)
			return
		}
		m.enterState(StateConnecting)

	case StateConnecting:
		if !m.enabled {
			m.releaseTransport()
			m.enterState(StateDisabled)
			return
		}
		if m.attemptConnect() {
			m.enterState(StateConnected)
		} else {
			m.enterState(StateReconnecting)
		}

	case StateConnected:
		if !m.enabled {
			m.releaseTransport()
			m.enterState(StateDisabled)
			return
		}
		if !m.shouldHealthCheck() {
			return
		}
		m.lastHealthCheck = m.clock()
		m.metrics.incHealthCheckCount()
		if m.transport == nil || !m.transport.IsConnected() {
			m.metrics.incHealthCheckFailCount()
			m.logger.Info("companion link lost", "addr", m.cfg.Addr())
			m.enterState(StateReconnecting)
		}

	case StateReconnecting:
		if !m.enabled {
			m.releaseTransport()
			m.enterState(StateDisabled)
			return
		}
		if m.clock().Sub(m.stateEnteredAt) < m.backoff {
			return
		}
		if m.attemptConnect() {
			m.enterState(StateConnected)
		} else {
			// Double the delay up to the cap; re-entering resets the in-state timer.
			nextBackoff := m.backoff * 2
			if nextBackoff > m.cfg.maxBackoff {
				nextBackoff = m.cfg.maxBackoff
			}
			m.backoff = nextBackoff
			m.metrics.incConnRetryGauge()
			m.enterState(StateReconnecting)
		}
	}
}

// Send encodes msg and writes it to the companion. It fails with ErrNotConnected
// when the link is not in the connected state. A transport failure surfaces to
// the caller and does not itself force a state transition; the next scheduled
// health check reconciles the machine.
func (m *Manager) Send(msg *maple.Message) error {
	transport, err := m.connectedTransport()
	if err != nil {
		return err
	}

	if err := transport.SendBytes(maple.Encode(msg)); err != nil {
		m.metrics.incSendErrCount()
		m.logger.Debug("send failed", "error", err, "msg", msg.String())
		return err
	}

	m.metrics.incMsgSendCount()

	return nil
}

// Receive reads and decodes one frame from the companion. It fails with
// ErrNotConnected when the link is not in the connected state. A garbled line
// fails without closing the connection; resynchronization happens on the next
// line.
func (m *Manager) Receive() (*maple.Message, error) {
	transport, err := m.connectedTransport()
	if err != nil {
		return nil, err
	}

	line, err := transport.ReceiveLine()
	if err != nil {
		m.metrics.incRecvErrCount()
		m.logger.Debug("receive failed", "error", err)
		return nil, err
	}

	msg, err := maple.Decode(line)
	if err != nil {
		m.metrics.incRecvErrCount()
		m.logger.Warn("received malformed frame", "error", err, "line_len", len(line))
		return nil, err
	}

	m.metrics.incMsgRecvCount()

	return msg, nil
}

// Close disables the manager and releases all resources. The manager cannot be
// reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.enabled = false

	m.releaseTransport()
	if m.State() != StateDisabled {
		m.enterState(StateDisabled)
	}
}

// connectedTransport returns the owned transport iff the machine is connected.
func (m *Manager) connectedTransport() (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateConnected || m.transport == nil {
		return nil, ErrNotConnected
	}

	return m.transport, nil
}

// attemptConnect recreates the transport and tries to connect.
// Caller must hold m.mu. On success the backoff and health-check clocks reset.
func (m *Manager) attemptConnect() bool {
	m.releaseTransport()
	m.transport = m.cfg.transportFactory(m.cfg)

	if err := m.transport.Connect(); err != nil {
		m.logger.Debug("connect attempt failed", "addr", m.cfg.Addr(), "error", err)
		m.releaseTransport()
		return false
	}

	m.backoff = m.cfg.initialBackoff
	m.lastHealthCheck = m.clock()
	m.metrics.resetConnRetryGauge()
	m.logger.Info("companion link established", "addr", m.cfg.Addr())

	return true
}

// shouldHealthCheck rate-limits liveness probes while connected.
// Caller must hold m.mu.
func (m *Manager) shouldHealthCheck() bool {
	return m.clock().Sub(m.lastHealthCheck) >= m.cfg.healthCheckInterval
}

// enterState records the transition and its entry timestamp. Re-entering the
// current state only resets the in-state timer; handlers and subscribers are
// notified on actual changes. Caller must hold m.mu.
func (m *Manager) enterState(newState ConnState) {
	prev := m.State()
	m.state.Store(uint32(newState))
	m.stateEnteredAt = m.clock()

	if prev == newState {
		return
	}

	m.logger.Debug("connection state change", "prev", prev, "cur", newState)

	for _, handler := range m.handlers {
		if handler != nil {
			handler(prev, newState)
		}
	}

	m.broadcaster.publish(StateChange{Prev: prev, Cur: newState, At: m.stateEnteredAt})
}

// releaseTransport disconnects and drops the owned transport.
// Caller must hold m.mu.
func (m *Manager) releaseTransport() {
	if m.transport != nil {
		m.transport.Disconnect()
		m.transport = nil
	}
}
