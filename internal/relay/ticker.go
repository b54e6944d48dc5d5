package relay

import (
	"sync"
	"time"
)

// Ticker delivers window boundaries.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type windowTicker struct {
	c    chan time.Time
	stop chan struct{}
	once sync.Once
}

// NewWindowTicker fires every d. The timer is re-armed only once a tick has
// been consumed, so a late tick is followed by a full window rather than a
// short one, and missed ticks never pile up.
func NewWindowTicker(d time.Duration) Ticker {
	w := &windowTicker{c: make(chan time.Time), stop: make(chan struct{})}
	go w.run(d)
	return w
}

func (w *windowTicker) run(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-w.stop:
			return
		case now := <-timer.C:
			select {
			case w.c <- now:
			case <-w.stop:
				return
			}
			timer.Reset(d)
		}
	}
}

func (w *windowTicker) C() <-chan time.Time { return w.c }

func (w *windowTicker) Stop() { w.once.Do(func() { close(w.stop) }) }
