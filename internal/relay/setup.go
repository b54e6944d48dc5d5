package relay

import (
	"context"
	"math"
	"net"

	"github.com/matst80/tcpthrottle/internal/obs"
	"github.com/matst80/tcpthrottle/internal/sockstat"
)

// Listen binds the local address the client will connect to.
func Listen(bind string) (net.Listener, error) {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, setupErr("bind", err)
	}
	return ln, nil
}

// AcceptOne waits for exactly one inbound connection and closes ln.
func AcceptOne(ctx context.Context, ln net.Listener) (net.Conn, error) {
	type accepted struct {
		c   net.Conn
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, err := ln.Accept()
		ch <- accepted{c: c, err: err}
	}()
	select {
	case <-ctx.Done():
		_ = ln.Close()
		if a := <-ch; a.c != nil {
			_ = a.c.Close()
		}
		return nil, ErrInterrupted
	case a := <-ch:
		_ = ln.Close()
		if a.err != nil {
			return nil, setupErr("accept", a.err)
		}
		obs.Info("session.accepted", obs.Fields{"client": a.c.RemoteAddr().String()})
		return a.c, nil
	}
}

// DialOptions configures the upstream connection.
type DialOptions struct {
	// LimitRecvWindow caps the socket receive buffer at RecvWindow bytes
	// before connecting so TCP flow control also throttles the server.
	// It is applied once and never revisited.
	LimitRecvWindow bool
	RecvWindow      int64
}

// DialUpstream opens the single outbound connection.
func DialUpstream(ctx context.Context, addr string, opts DialOptions) (net.Conn, error) {
	var d net.Dialer
	if opts.LimitRecvWindow {
		size := opts.RecvWindow
		if size > math.MaxInt32 {
			size = math.MaxInt32
		}
		d.Control = sockstat.RecvBufferControl(int(size))
	}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}
		return nil, setupErr("connect", err)
	}
	obs.Info("session.connected", obs.Fields{"server": addr, "recv_window_limited": opts.LimitRecvWindow})
	return c, nil
}
