// Package relay forwards bytes between one client and one upstream server
// under independent per-direction byte budgets that reset every window.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/tcpthrottle/internal/obs"
	"github.com/matst80/tcpthrottle/internal/proto"
	"github.com/matst80/tcpthrottle/internal/ratelimit"
	"github.com/matst80/tcpthrottle/internal/sockstat"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultBufferSize bounds a single read in either direction.
	DefaultBufferSize = 16 * 1024
	// DefaultWindow is the accounting interval.
	DefaultWindow = time.Second
)

// Reporter receives one diagnostic snapshot per window.
type Reporter interface {
	Report(ctx context.Context, s proto.Snapshot) error
}

// Config holds the per-session limits and collaborators. Zero values pick defaults.
type Config struct {
	// DownloadLimit and UploadLimit are bytes per window. Zero starves the direction.
	DownloadLimit int64
	UploadLimit   int64
	BufferSize    int
	Window        time.Duration
	Policy        Policy
	Inspector     sockstat.Inspector
	Reporter      Reporter
	NewTicker     func(time.Duration) Ticker
	SessionID     string
}

func (c *Config) withDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Policy == nil {
		c.Policy = DefaultPolicy
	}
	if c.Inspector == nil {
		c.Inspector = sockstat.Kernel{}
	}
	if c.NewTicker == nil {
		c.NewTicker = NewWindowTicker
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
}

func (c *Config) validate() error {
	if c.DownloadLimit < 0 || c.UploadLimit < 0 {
		return fmt.Errorf("limits must be non-negative (download=%d upload=%d)", c.DownloadLimit, c.UploadLimit)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufferSize)
	}
	if c.Window < 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	return c.Policy.Validate()
}

// Session is the single active relay. It exclusively owns both connections
// and the budget from New until Run returns.
type Session struct {
	cfg    Config
	client net.Conn
	server net.Conn
	budget *ratelimit.Tracker
	pumps  [2]*pump
	totals [2]int64
	// snapshots hands tick output to the reporter goroutine; a full slot drops.
	snapshots chan proto.Snapshot
	// throttled rate-limits the "budget exhausted" debug log per direction.
	throttled [2]rate.Sometimes
}

// New prepares a session over an accepted client connection and an
// established server connection.
func New(client, server net.Conn, cfg Config) (*Session, error) {
	cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, setupErr("configure", err)
	}
	s := &Session{
		cfg:    cfg,
		client: client,
		server: server,
		budget: ratelimit.NewTracker(cfg.DownloadLimit, cfg.UploadLimit, cfg.BufferSize),

		snapshots: make(chan proto.Snapshot, 1),
	}
	s.pumps[ratelimit.Download] = newPump(ratelimit.Download, server, cfg.BufferSize)
	s.pumps[ratelimit.Upload] = newPump(ratelimit.Upload, client, cfg.BufferSize)
	for i := range s.throttled {
		s.throttled[i].Interval = cfg.Window
	}
	return s, nil
}

// ID identifies the session in logs and snapshots.
func (s *Session) ID() string { return s.cfg.SessionID }

// destination returns the handle a direction writes to and its side name.
func (s *Session) destination(d ratelimit.Direction) (net.Conn, string) {
	if d == ratelimit.Download {
		return s.client, "client"
	}
	return s.server, "server"
}

func sourceSide(d ratelimit.Direction) string {
	if d == ratelimit.Download {
		return "server"
	}
	return "client"
}

// Run relays until either side reaches end-of-stream (nil), an I/O or
// policy-terminated failure occurs (*Error), or ctx is cancelled
// (ErrInterrupted). Both connections are closed on return.
//
// Each iteration executes exactly one of: a completed download read, a
// completed upload read, or a window tick. Reads are only issued while the
// direction has budget left, and are bounded by it.
func (s *Session) Run(ctx context.Context) (err error) {
	start := time.Now()
	obs.ActiveSessions.Inc()
	obs.Info("session.start", obs.Fields{
		"session":        s.ID(),
		"download_limit": s.cfg.DownloadLimit,
		"upload_limit":   s.cfg.UploadLimit,
		"window":         s.cfg.Window.String(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	// A failed read cancels the other pump and the reporter. The loop still
	// receives that read's result and classifies it, so Wait only joins.
	g, gctx := errgroup.WithContext(runCtx)
	results := make(chan readResult)
	for _, p := range s.pumps {
		p := p
		g.Go(func() error { return p.run(gctx, results) })
	}
	g.Go(func() error { s.report(gctx); return nil })
	ticker := s.cfg.NewTicker(s.cfg.Window)

	defer func() {
		ticker.Stop()
		close(s.snapshots)
		cancel()
		_ = s.client.Close()
		_ = s.server.Close()
		if werr := g.Wait(); werr != nil {
			obs.Debug("session.pumps", obs.Fields{"session": s.ID(), "err": werr.Error()})
		}
		obs.ActiveSessions.Dec()
		obs.SessionDurationSeconds.Observe(time.Since(start).Seconds())
		f := obs.Fields{
			"session":        s.ID(),
			"duration":       time.Since(start).String(),
			"download_bytes": s.totals[ratelimit.Download],
			"upload_bytes":   s.totals[ratelimit.Upload],
			"exit_code":      ExitCode(err),
		}
		if err != nil {
			f["err"] = err.Error()
		}
		obs.Info("session.terminated", f)
	}()

	var outstanding [2]bool
	for {
		for _, d := range ratelimit.Directions {
			if outstanding[d] {
				continue
			}
			n := s.budget.Remaining(d)
			if n == 0 {
				s.throttled[d].Do(func() {
					obs.Debug("relay.throttled", obs.Fields{"session": s.ID(), "direction": d.String(), "limit": s.budget.Limit(d)})
				})
				continue
			}
			s.pumps[d].grants <- n
			outstanding[d] = true
		}

		select {
		case <-ctx.Done():
			return ErrInterrupted
		case r := <-results:
			outstanding[r.dir] = false
			done, err := s.forward(r)
			if done {
				return err
			}
		case <-ticker.C():
			if err := s.tick(); err != nil {
				return err
			}
		}
	}
}

// forward charges and writes one completed read. done reports that the
// session must end.
func (s *Session) forward(r readResult) (done bool, err error) {
	if r.n > 0 {
		if err := s.budget.Record(r.dir, r.n); err != nil {
			return true, fmt.Errorf("relay %s: %w", r.dir, err)
		}
		dst, side := s.destination(r.dir)
		if err := writeFull(dst, s.pumps[r.dir].buf[:r.n]); err != nil {
			return true, s.fail(&Error{Kind: KindSessionIO, Op: "write", Side: side, Err: err})
		}
		s.totals[r.dir] += int64(r.n)
		obs.BytesForwardedTotal.WithLabelValues(r.dir.String()).Add(float64(r.n))
		obs.Debug("relay.forward", obs.Fields{"session": s.ID(), "direction": r.dir.String(), "n": r.n})
	}
	switch {
	case r.err == nil && r.n > 0:
		return false, nil
	case r.err == nil, errors.Is(r.err, io.EOF):
		// no half-close: either side finishing ends the whole session
		obs.Info("session.eof", obs.Fields{"session": s.ID(), "side": sourceSide(r.dir)})
		return true, nil
	default:
		return true, s.fail(&Error{Kind: KindSessionIO, Op: "read", Side: sourceSide(r.dir), Err: r.err})
	}
}

func writeFull(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return err
}

// fail counts and logs e and returns it unless the policy downgrades it.
func (s *Session) fail(e *Error) error {
	obs.ErrorsTotal.WithLabelValues(e.Kind.String()).Inc()
	if s.cfg.Policy.Action(e.Kind) == ActionWarn {
		obs.Warn("session.degraded", obs.Fields{"session": s.ID(), "kind": e.Kind.String(), "err": e.Error()})
		return nil
	}
	obs.Error("session.failed", obs.Fields{"session": s.ID(), "kind": e.Kind.String(), "err": e.Error()})
	return e
}

// tick closes the window and emits the diagnostic snapshot.
func (s *Session) tick() error {
	usage := s.budget.Reset()
	for _, d := range ratelimit.Directions {
		used := usage.Get(d)
		obs.WindowBytes.WithLabelValues(d.String()).Set(float64(used))
		if limit := s.budget.Limit(d); limit > 0 && used >= limit {
			obs.ThrottledWindowsTotal.WithLabelValues(d.String()).Inc()
		}
	}

	server, err := s.probe(s.server, "server")
	if err != nil {
		return s.fail(err)
	}
	client, err := s.probe(s.client, "client")
	if err != nil {
		return s.fail(err)
	}

	snap := proto.Snapshot{
		SessionID:           s.ID(),
		At:                  time.Now().UTC(),
		Server:              server,
		Client:              client,
		DownloadWindowBytes: usage.Download,
		UploadWindowBytes:   usage.Upload,
		DownloadTotalBytes:  s.totals[ratelimit.Download],
		UploadTotalBytes:    s.totals[ratelimit.Upload],
	}
	select {
	case s.snapshots <- snap:
	default:
		obs.Warn("diagnostics.dropped", obs.Fields{"session": s.ID(), "reason": "reporter busy"})
	}
	return nil
}

// report drains snapshots off the relay loop so a slow store never stalls
// forwarding. Each Report gets at most one window.
func (s *Session) report(ctx context.Context) {
	for snap := range s.snapshots {
		if s.cfg.Reporter == nil {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, s.cfg.Window)
		if err := s.cfg.Reporter.Report(rctx, snap); err != nil {
			obs.Warn("diagnostics.report", obs.Fields{"session": s.ID(), "err": err.Error()})
		}
		cancel()
	}
}

// probe reads one handle's unread queue. Platforms without the facility
// yield an unavailable depth, not an error.
func (s *Session) probe(c net.Conn, side string) (proto.QueueDepth, *Error) {
	n, err := s.cfg.Inspector.QueuedUnread(c)
	switch {
	case err == nil:
		obs.QueuedBytes.WithLabelValues(side).Set(float64(n))
		return proto.QueueDepth{Bytes: n, Available: true}, nil
	case errors.Is(err, sockstat.ErrUnsupported):
		return proto.QueueDepth{}, nil
	default:
		return proto.QueueDepth{}, &Error{Kind: KindDiagnostics, Op: "probe", Side: side, Err: err}
	}
}
