package relay

import "errors"

var (
	// ErrConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConfigNil = errors.New("relay: connection config is nil")

	// ErrNotConnected indicates that the connection manager is not in the connected state.
	ErrNotConnected = errors.New("relay: not connected")

	// ErrTransportClosed indicates an operation on a transport with no open socket.
	ErrTransportClosed = errors.New("relay: transport closed")

	// ErrPeerClosed indicates that the remote companion closed the connection.
	ErrPeerClosed = errors.New("relay: peer closed connection")

	// ErrLineTooLong indicates that an incoming line exceeded the configured bound
	// before a terminator was seen.
	ErrLineTooLong = errors.New("relay: line exceeds maximum length")

	// errNoRawConn indicates that a connection does not expose a raw descriptor
	// for the liveness probe.
	errNoRawConn = errors.New("relay: connection does not expose a raw syscall descriptor")
)
