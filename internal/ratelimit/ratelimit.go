package ratelimit

import (
	"errors"
	"fmt"
)

// ErrOverBudget is returned by Record when n exceeds what the window still allows.
var ErrOverBudget = errors.New("record exceeds remaining budget")

// Direction identifies one half of a relayed session.
type Direction int

const (
	// Download is server -> client traffic.
	Download Direction = iota
	// Upload is client -> server traffic.
	Upload
)

// Directions lists both directions in a stable order.
var Directions = [...]Direction{Download, Upload}

func (d Direction) String() string {
	switch d {
	case Download:
		return "download"
	case Upload:
		return "upload"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Usage is the consumption of one closed window.
type Usage struct {
	Download int64
	Upload   int64
}

// Get returns the value for d.
func (u Usage) Get(d Direction) int64 {
	if d == Upload {
		return u.Upload
	}
	return u.Download
}

// Tracker holds per-direction byte budgets for a fixed accounting window.
// It is owned by a single relay loop and is not safe for concurrent use.
type Tracker struct {
	limit    [2]int64
	consumed [2]int64
	bufCap   int
}

// NewTracker creates a tracker with the given per-window limits. bufferCapacity
// caps the size of a single read regardless of the remaining budget.
func NewTracker(downloadLimit, uploadLimit int64, bufferCapacity int) *Tracker {
	if downloadLimit < 0 {
		downloadLimit = 0
	}
	if uploadLimit < 0 {
		uploadLimit = 0
	}
	if bufferCapacity < 0 {
		bufferCapacity = 0
	}
	return &Tracker{
		limit:  [2]int64{downloadLimit, uploadLimit},
		bufCap: bufferCapacity,
	}
}

// Limit returns the configured per-window limit for d.
func (t *Tracker) Limit(d Direction) int64 { return t.limit[d] }

// Consumed returns the bytes already charged to d in the current window.
func (t *Tracker) Consumed(d Direction) int64 { return t.consumed[d] }

// Remaining reports how many bytes d may still move in this window, bounded
// by the transfer buffer capacity. Zero means the direction is throttled
// until the next Reset.
func (t *Tracker) Remaining(d Direction) int {
	left := t.limit[d] - t.consumed[d]
	if left <= 0 {
		return 0
	}
	if left > int64(t.bufCap) {
		return t.bufCap
	}
	return int(left)
}

// Record charges n bytes to d. The counter is left untouched when n is
// negative or larger than the window allows.
func (t *Tracker) Record(d Direction, n int) error {
	if n < 0 {
		return fmt.Errorf("record %s: negative count %d", d, n)
	}
	if t.consumed[d]+int64(n) > t.limit[d] {
		return fmt.Errorf("record %s: %d bytes with %d left: %w", d, n, t.limit[d]-t.consumed[d], ErrOverBudget)
	}
	t.consumed[d] += int64(n)
	return nil
}

// Reset starts a new window and returns the usage of the window that ended.
func (t *Tracker) Reset() Usage {
	u := Usage{Download: t.consumed[Download], Upload: t.consumed[Upload]}
	t.consumed = [2]int64{}
	return u
}
