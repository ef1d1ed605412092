package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/openmaple/maplelink/logger"
)

// Transport is the raw, deadline-bounded byte exchange with the companion over
// one socket. Implementations must serialize all operations internally so a
// liveness probe never races an application send or receive, and so two
// producers cannot interleave the bytes of two frames.
type Transport interface {
	// Connect establishes the connection. It is a no-op when already connected
	// and safe to call repeatedly after failure.
	Connect() error

	// Disconnect closes the socket if open. Always safe to call.
	Disconnect()

	// IsConnected probes the remote end without consuming queued data and
	// without blocking.
	IsConnected() bool

	// SendBytes writes all bytes within a short deadline. Deadline expiry or a
	// lost peer marks the transport disconnected.
	SendBytes(data []byte) error

	// ReceiveLine reads one CRLF-terminated line, terminator stripped, within a
	// short deadline and a maximum length bound. A deadline expiry fails without
	// tearing the connection down; a closed peer or hard error marks the
	// transport disconnected.
	ReceiveLine() ([]byte, error)
}

// peekStatus is the outcome of a non-destructive liveness probe.
type peekStatus int

const (
	peekAlive peekStatus = iota
	peekClosed
	peekError
)

// TCPTransport is the TCP adapter of Transport.
//
// One mutex guards the socket and the connected flag: connect and disconnect
// never overlap an in-progress send or receive, and at most one logical
// request is in flight at a time.
type TCPTransport struct {
	mu sync.Mutex

	addr           string
	connectTimeout time.Duration
	ioTimeout      time.Duration
	maxLineLen     int
	logger         logger.Logger

	conn net.Conn
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransport creates a transport for the companion endpoint described by cfg.
func NewTCPTransport(cfg *ConnectionConfig) *TCPTransport {
	return &TCPTransport{
		addr:           cfg.Addr(),
		connectTimeout: cfg.connectTimeout,
		ioTimeout:      cfg.ioTimeout,
		maxLineLen:     cfg.maxLineLength,
		logger:         cfg.logger,
	}
}

// Connect opens a TCP connection to the companion, bounded by the connect
// timeout. On failure the socket is released and the transport remains safe to
// reconnect.
func (t *TCPTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: t.connectTimeout, KeepAlive: 30 * time.Second}

	conn, err := dialer.Dial("tcp", t.addr)
	if err != nil {
		t.logger.Debug("failed to dial to companion", "addr", t.addr, "error", err)
		return fmt.Errorf("relay: connect %s: %w", t.addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		// Frames are small and latency-sensitive.
		_ = tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	t.logger.Debug("connected to companion",
		"addr", t.addr,
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	return nil
}

// Disconnect closes the socket if open. Safe to call when already disconnected.
func (t *TCPTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLocked()
}

// IsConnected performs a non-destructive one-byte peek of the socket.
//
// Zero bytes with no error means the peer closed; a would-block result means
// the connection is presumed alive. Any other error marks the transport
// disconnected. Queued application data is never consumed.
func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return false
	}

	status, err := peekConn(t.conn)
	switch status {
	case peekAlive:
		return true
	case peekClosed:
		t.logger.Debug("liveness probe: peer closed", "addr", t.addr)
		t.closeLocked()
		return false
	default:
		t.logger.Debug("liveness probe failed", "addr", t.addr, "error", err)
		t.closeLocked()
		return false
	}
}

// SendBytes writes all of data within the I/O deadline. Any failure, including
// deadline expiry, marks the transport disconnected; the caller recovers by
// going through a reconnect.
func (t *TCPTransport) SendBytes(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrTransportClosed
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.ioTimeout)); err != nil {
		t.closeLocked()
		return fmt.Errorf("relay: set send deadline: %w", err)
	}

	for len(data) > 0 {
		n, err := t.conn.Write(data)
		data = data[n:]
		if err != nil {
			t.closeLocked()
			return fmt.Errorf("relay: send: %w", err)
		}
	}

	return nil
}

// ReceiveLine reads one byte at a time until a CRLF terminator, the I/O
// deadline, or the length bound. The terminator is stripped from the result.
func (t *TCPTransport) ReceiveLine() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, ErrTransportClosed
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(t.ioTimeout)); err != nil {
		t.closeLocked()
		return nil, fmt.Errorf("relay: set receive deadline: %w", err)
	}

	line := make([]byte, 0, 64)
	var b [1]byte
	for {
		n, err := t.conn.Read(b[:])
		if n > 0 {
			line = append(line, b[0])
			if l := len(line); l >= 2 && line[l-2] == '\r' && line[l-1] == '\n' {
				return line[:l-2], nil
			}
			if len(line) >= t.maxLineLen {
				return nil, fmt.Errorf("%w: %d bytes without terminator", ErrLineTooLong, len(line))
			}
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// A slow line is not a dead peer; leave the connection open.
				return nil, fmt.Errorf("relay: receive deadline: %w", err)
			}
			t.closeLocked()
			if errors.Is(err, io.EOF) {
				return nil, ErrPeerClosed
			}
			return nil, fmt.Errorf("relay: receive: %w", err)
		}
	}
}

// closeLocked closes the socket and resets the connected state.
// Caller must hold t.mu.
func (t *TCPTransport) closeLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}
