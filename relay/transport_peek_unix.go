//go:build unix

package relay

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peekConn judges whether the remote end of conn is still present by peeking one
// byte with MSG_PEEK, so queued application data is never consumed. MSG_DONTWAIT
// keeps the probe from blocking regardless of the descriptor's blocking mode.
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
		n, _, errno := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case errno == unix.EAGAIN || errno == unix.EWOULDBLOCK:
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
