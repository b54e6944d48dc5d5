package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/matst80/tcpthrottle/internal/ratelimit"
)

type readResult struct {
	dir ratelimit.Direction
	n   int
	err error
}

// pump reads one direction's source, but only when granted a byte count by
// the loop. buf is handed to the loop with each result and not touched again
// until the next grant.
type pump struct {
	dir    ratelimit.Direction
	src    net.Conn
	buf    []byte
	grants chan int
}

func newPump(dir ratelimit.Direction, src net.Conn, size int) *pump {
	return &pump{dir: dir, src: src, buf: make([]byte, size), grants: make(chan int, 1)}
}

func (p *pump) run(ctx context.Context, results chan<- readResult) error {
	for {
		var grant int
		select {
		case <-ctx.Done():
			return nil
		case grant = <-p.grants:
		}
		n, err := p.src.Read(p.buf[:grant])
		select {
		case results <- readResult{dir: p.dir, n: n, err: err}:
		case <-ctx.Done():
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", p.dir, err)
		}
	}
}
