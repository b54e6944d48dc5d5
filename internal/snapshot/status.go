package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/matst80/tcpthrottle/internal/proto"
	"golang.org/x/term"
)

// StatusLine renders each snapshot as one human-readable line. On a
// terminal the line is rewritten in place.
type StatusLine struct {
	mu      sync.Mutex
	w       io.Writer
	inPlace bool
	dirty   bool
}

// NewStatusLine writes to w, overwriting in place when w is a terminal.
func NewStatusLine(w io.Writer) *StatusLine {
	inPlace := false
	if f, ok := w.(*os.File); ok {
		inPlace = term.IsTerminal(int(f.Fd()))
	}
	return &StatusLine{w: w, inPlace: inPlace}
}

func (l *StatusLine) Report(_ context.Context, s proto.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := FormatLine(s)
	var err error
	if l.inPlace {
		// trailing clear-to-end-of-line erases leftovers of a longer previous line
		_, err = fmt.Fprintf(l.w, "\r%s\x1b[K", line)
		l.dirty = true
	} else {
		_, err = fmt.Fprintln(l.w, line)
	}
	return err
}

// Finish moves past the in-place line so later output starts clean.
func (l *StatusLine) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inPlace && l.dirty {
		_, _ = fmt.Fprintln(l.w)
		l.dirty = false
	}
}

// FormatLine renders the queue depths of both sides.
func FormatLine(s proto.Snapshot) string {
	return fmt.Sprintf("server -> client: %s (excludes bytes from server's send queue). client -> server: %s",
		depth(s.Server), depth(s.Client))
}

func depth(q proto.QueueDepth) string {
	if !q.Available {
		return "queue depth unavailable"
	}
	return fmt.Sprintf("%d bytes in queue", q.Bytes)
}
