package scanstate

import (
	"sync"
	"time"
)

// DefaultInterval limits progress notifications to two per second.
const DefaultInterval = 500 * time.Millisecond

// Throttle coalesces progress notifications. The first update of a quiet
// period is delivered at once; later ones within the interval collapse into
// a single trailing delivery of the latest snapshot.
//
// fn runs with the throttle locked, so deliveries never overlap or reorder.
// It must not call back into the Throttle.
type Throttle struct {
	interval time.Duration
	fn       func(Snapshot)

	mu      sync.Mutex
	last    time.Time
	pending *Snapshot
	timer   *time.Timer
	stopped bool
}

// NewThrottle returns a Throttle delivering to fn at most once per interval.
func NewThrottle(interval time.Duration, fn func(Snapshot)) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{interval: interval, fn: fn}
}

// Notify offers a new snapshot.
func (t *Throttle) Notify(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	now := time.Now()
	if t.timer == nil && now.Sub(t.last) >= t.interval {
		t.last = now
		t.fn(s)
		return
	}

	t.pending = &s
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval-now.Sub(t.last), t.fire)
	}
}

func (t *Throttle) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timer = nil
	if t.stopped || t.pending == nil {
		return
	}
	t.last = time.Now()
	t.fn(*t.pending)
	t.pending = nil
}

// Flush delivers the pending snapshot, if any, and stops the throttle.
func (t *Throttle) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if !t.stopped && t.pending != nil {
		t.fn(*t.pending)
		t.pending = nil
	}
	t.stopped = true
}
