package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmaple/maplelink/maple"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// fakeTransport is a scriptable Transport for state machine tests.
type fakeTransport struct {
	mu           sync.Mutex
	connectErr   error
	connected    bool
	alive        bool
	connectCalls int
	disconnects  int
	sent         [][]byte
	recvQueue    [][]byte
	sendErr      error
	recvErr      error
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.alive = true

	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects++
	f.connected = false
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected && f.alive
}

func (f *fakeTransport) SendBytes(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))

	return nil
}

func (f *fakeTransport) ReceiveLine() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recvErr != nil {
		return nil, f.recvErr
	}
	if len(f.recvQueue) == 0 {
		return nil, ErrPeerClosed
	}
	line := f.recvQueue[0]
	f.recvQueue = f.recvQueue[1:]

	return line, nil
}

func (f *fakeTransport) setAlive(alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alive = alive
}

func (f *fakeTransport) setConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connectErr = err
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connectCalls
}

// testManager builds a manager wired to a shared fakeTransport and fakeClock.
func testManager(t *testing.T, opts ...ConnOption) (*Manager, *fakeTransport, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	transport := &fakeTransport{}

	base := []ConnOption{
		WithClock(clock.Now),
		WithTransportFactory(func(*ConnectionConfig) Transport { return transport }),
	}

	cfg, err := NewConnectionConfig(DefaultHost, DefaultPort, append(base, opts...)...)
	require.NoError(t, err)

	m, err := NewManager(cfg)
	require.NoError(t, err)

	return m, transport, clock
}

func TestNewManagerNilConfig(t *testing.T) {
	_, err := NewManager(nil)
	require.ErrorIs(t, err, ErrConfigNil)
}

func TestManagerEnableDisable(t *testing.T) {
	require := require.New(t)

	m, transport, _ := testManager(t)
	require.Equal(StateDisabled, m.State())
	require.False(m.IsEnabled())

	m.SetEnabled(true)
	require.True(m.IsEnabled())
	require.Equal(StateDisconnected, m.State())

	// Idempotent.
	m.SetEnabled(true)
	require.Equal(StateDisconnected, m.State())

	m.Update()
	require.Equal(StateConnecting, m.State())

	// Disabling releases the transport synchronously and re-enabling starts over
	// from disconnected, never a stale connected assumption.
	m.Update()
	require.Equal(StateConnected, m.State())
	m.SetEnabled(false)
	require.Equal(StateDisabled, m.State())
	require.False(transport.IsConnected())

	m.SetEnabled(true)
	require.Equal(StateDisconnected, m.State())
}

func TestManagerConnectFailureEntersReconnecting(t *testing.T) {
	require := require.New(t)

	m, transport, clock := testManager(t)
	transport.setConnectErr(errors.New("connection refused"))

	var states []ConnState
	m.AddStateChangeHandler(func(_, cur ConnState) { states = append(states, cur) })

	m.SetEnabled(true)
	m.Update() // disconnected -> connecting
	m.Update() // connecting -> reconnecting
	require.Equal(StateReconnecting, m.State())
	require.Equal([]ConnState{StateDisconnected, StateConnecting, StateReconnecting}, states)
	require.Equal(1, transport.calls())

	// No attempt before the initial 1s backoff has elapsed.
	clock.Advance(999 * time.Millisecond)
	m.Update()
	require.Equal(1, transport.calls())

	clock.Advance(1 * time.Millisecond)
	m.Update()
	require.Equal(2, transport.calls())
	require.Equal(StateReconnecting, m.State())
}

func TestManagerBackoffSequence(t *testing.T) {
	require := require.New(t)

	m, transport, clock := testManager(t)
	transport.setConnectErr(errors.New("connection refused"))

	m.SetEnabled(true)
	m.Update() // -> connecting
	m.Update() // -> reconnecting, backoff starts at 1s

	attempts := 1 // the connecting attempt
	for _, wantDelay := range []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	} {
		// Just short of the delay: no attempt.
		clock.Advance(wantDelay - time.Millisecond)
		m.Update()
		require.Equal(attempts, transport.calls(), "attempted before %v elapsed", wantDelay)

		clock.Advance(time.Millisecond)
		m.Update()
		attempts++
		require.Equal(attempts, transport.calls(), "no attempt after %v elapsed", wantDelay)
	}

	// A successful connect resets the backoff to 1s.
	transport.setConnectErr(nil)
	clock.Advance(30 * time.Second)
	m.Update()
	require.Equal(StateConnected, m.State())

	transport.setAlive(false)
	transport.setConnectErr(errors.New("connection refused"))
	clock.Advance(5 * time.Second) // health check interval
	m.Update()
	require.Equal(StateReconnecting, m.State())

	before := transport.calls()
	clock.Advance(1 * time.Second)
	m.Update()
	require.Equal(before+1, transport.calls())
}

func TestManagerHealthCheckThrottle(t *testing.T) {
	require := require.New(t)

	m, transport, clock := testManager(t)
	m.SetEnabled(true)
	m.Update()
	m.Update()
	require.Equal(StateConnected, m.State())

	// Many ticks inside the interval run no probe.
	for i := 0; i < 100; i++ {
		m.Update()
	}
	require.Equal(uint64(0), m.Metrics().HealthCheckCount.Load())

	clock.Advance(5 * time.Second)
	m.Update()
	require.Equal(uint64(1), m.Metrics().HealthCheckCount.Load())
	require.Equal(StateConnected, m.State())

	// A dead peer is only noticed by the next scheduled probe.
	transport.setAlive(false)
	m.Update()
	require.Equal(StateConnected, m.State())

	clock.Advance(5 * time.Second)
	m.Update()
	require.Equal(StateReconnecting, m.State())
	require.Equal(uint64(1), m.Metrics().HealthCheckFailCount.Load())
}

func TestManagerNotifications(t *testing.T) {
	require := require.New(t)

	type notification struct {
		message  string
		duration int
	}
	var notifications []notification
	sink := NotifierFunc(func(message string, durationHint int) {
		notifications = append(notifications, notification{message, durationHint})
	})

	m, transport, clock := testManager(t, WithNotifier(sink))

	m.SetEnabled(true)
	m.Update()
	m.Update()
	require.Equal(StateConnected, m.State())
	require.Len(notifications, 1)
	require.Equal(notification{"Network accessory connected", ConnectedDuration}, notifications[0])

	// Lost peer: exactly one disconnected notification.
	transport.setAlive(false)
	transport.setConnectErr(errors.New("connection refused"))
	clock.Advance(5 * time.Second)
	m.Update()
	require.Len(notifications, 2)
	require.Equal(notification{"Network accessory disconnected", DisconnectedDuration}, notifications[1])

	// Failed reconnect attempts stay silent.
	for i := 0; i < 5; i++ {
		clock.Advance(30 * time.Second)
		m.Update()
	}
	require.Len(notifications, 2)

	// Peer back: exactly one reconnected notification.
	transport.setConnectErr(nil)
	clock.Advance(30 * time.Second)
	m.Update()
	require.Equal(StateConnected, m.State())
	require.Len(notifications, 3)
	require.Equal(notification{"Network accessory reconnected", ReconnectedDuration}, notifications[2])
}

func TestManagerSendReceive(t *testing.T) {
	require := require.New(t)

	m, transport, _ := testManager(t)

	msg := &maple.Message{Command: 0x07, DestAP: 0x01, OriginAP: 0x02, WordCount: 1}
	copy(msg.Payload[:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	// Both fail immediately while not connected.
	require.ErrorIs(m.Send(msg), ErrNotConnected)
	_, err := m.Receive()
	require.ErrorIs(err, ErrNotConnected)

	m.SetEnabled(true)
	m.Update()
	m.Update()
	require.True(m.IsConnected())

	require.NoError(m.Send(msg))
	require.Len(transport.sent, 1)
	require.Equal("07 01 02 01 DE AD BE EF\r\n", string(transport.sent[0]))
	require.Equal(uint64(1), m.Metrics().MsgSendCount.Load())

	transport.recvQueue = [][]byte{[]byte("08 02 01 01 11 22 33 44")}
	reply, err := m.Receive()
	require.NoError(err)
	require.Equal(byte(0x08), reply.Command)
	require.Equal([]byte{0x11, 0x22, 0x33, 0x44}, reply.Data())

	// A transport failure surfaces to the caller without a state transition.
	transport.sendErr = errors.New("broken pipe")
	require.Error(m.Send(msg))
	require.Equal(StateConnected, m.State())
	require.Equal(uint64(1), m.Metrics().SendErrCount.Load())

	// A garbled line fails the receive but leaves the machine connected.
	transport.recvErr = nil
	transport.recvQueue = [][]byte{[]byte("07 01 02 101")}
	_, err = m.Receive()
	require.ErrorIs(err, maple.ErrPayloadOverflow)
	require.Equal(StateConnected, m.State())
}

func TestManagerSubscribe(t *testing.T) {
	require := require.New(t)

	m, _, _ := testManager(t)

	events, cancel := m.Subscribe(8)
	defer cancel()

	m.SetEnabled(true)
	m.Update()
	m.Update()

	want := []StateChange{
		{Prev: StateDisabled, Cur: StateDisconnected},
		{Prev: StateDisconnected, Cur: StateConnecting},
		{Prev: StateConnecting, Cur: StateConnected},
	}
	for _, w := range want {
		ev := <-events
		require.Equal(w.Prev, ev.Prev)
		require.Equal(w.Cur, ev.Cur)
	}

	cancel()
	m.SetEnabled(false)
	select {
	case ev, ok := <-events:
		require.True(ok, "channel should stay open")
		t.Fatalf("unexpected event after cancel: %+v", ev)
	default:
	}
}

func TestManagerClose(t *testing.T) {
	require := require.New(t)

	m, transport, _ := testManager(t)
	m.SetEnabled(true)
	m.Update()
	m.Update()
	require.Equal(StateConnected, m.State())

	m.Close()
	require.Equal(StateDisabled, m.State())
	require.False(transport.IsConnected())

	// Closed managers ignore further operations.
	m.SetEnabled(true)
	m.Update()
	require.Equal(StateDisabled, m.State())

	m.Close()
	require.Equal(StateDisabled, m.State())
}

func TestManagerTransportRecreatedPerAttempt(t *testing.T) {
	require := require.New(t)

	clock := newFakeClock()
	var created []*fakeTransport

	cfg, err := NewConnectionConfig(DefaultHost, DefaultPort,
		WithClock(clock.Now),
		WithTransportFactory(func(*ConnectionConfig) Transport {
			transport := &fakeTransport{connectErr: errors.New("connection refused")}
			created = append(created, transport)
			return transport
		}),
	)
	require.NoError(err)

	m, err := NewManager(cfg)
	require.NoError(err)

	m.SetEnabled(true)
	m.Update() // -> connecting
	m.Update() // -> reconnecting
	require.Len(created, 1)

	clock.Advance(time.Second)
	m.Update()
	require.Len(created, 2)

	clock.Advance(2 * time.Second)
	m.Update()
	require.Len(created, 3)
}
