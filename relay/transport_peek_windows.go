//go:build windows

package relay

import (
	"net"
	"syscall"

	"golang.org/x/sys/windows"
)

// peekConn judges whether the remote end of conn is still present by peeking one
// byte with MSG_PEEK, so queued application data is never consumed. Sockets
// handed out by the Go runtime are non-blocking, so the recv returns
// WSAEWOULDBLOCK instead of waiting when no data is queued.
func peekConn(conn net.Conn) (peekStatus, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return peekError, errNoRawConn
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return peekError, err
	}

	status := peekError
	var opErr error
	var buf [1]byte

	// The callback returns true immediately: the probe must not wait for the
	// descriptor to become readable.
	err = raw.Read(func(fd uintptr) bool {
		n, _, errno := windows.Recvfrom(windows.Handle(fd), buf[:], windows.MSG_PEEK)
		switch {
		case errno == windows.WSAEWOULDBLOCK:
			// No data queued, connection presumed alive.
			status = peekAlive
		case errno != nil:
			status, opErr = peekError, errno
		case n == 0:
			status = peekClosed
		default:
			status = peekAlive
		}
		return true
	})
	if err != nil {
		return peekError, err
	}

	return status, opErr
}
