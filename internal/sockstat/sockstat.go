// Package sockstat probes kernel-level socket state for diagnostics and
// applies socket options at connection time.
package sockstat

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrUnsupported is returned when the platform or the connection type has no
// way to report the unread queue. Callers should omit the value rather than
// treat it as a failure.
var ErrUnsupported = errors.New("queue probe unsupported")

// ProbeError reports a failed probe on a socket that should support it.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string { return "queue probe: " + e.Err.Error() }

func (e *ProbeError) Unwrap() error { return e.Err }

// Inspector reports how many bytes are queued unread on a connection.
type Inspector interface {
	QueuedUnread(conn net.Conn) (int, error)
}

// Kernel asks the operating system through the connection's file descriptor.
type Kernel struct{}

var _ Inspector = Kernel{}

// QueuedUnread returns the number of received bytes not yet read by the
// application.
func (Kernel) QueuedUnread(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, ErrUnsupported
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, &ProbeError{Err: err}
	}
	var (
		n    int
		perr error
	)
	if err := rc.Control(func(fd uintptr) { n, perr = queuedUnread(fd) }); err != nil {
		return 0, &ProbeError{Err: err}
	}
	if perr != nil {
		if errors.Is(perr, ErrUnsupported) {
			return 0, perr
		}
		return 0, &ProbeError{Err: perr}
	}
	return n, nil
}

// RecvBufferControl returns a net.Dialer Control hook that caps SO_RCVBUF at
// size bytes before the socket connects.
func RecvBufferControl(size int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		if err := c.Control(func(fd uintptr) { serr = setRecvBuffer(fd, size) }); err != nil {
			return err
		}
		if serr != nil {
			return fmt.Errorf("set receive buffer to %d: %w", size, serr)
		}
		return nil
	}
}
