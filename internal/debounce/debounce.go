// Package debounce coalesces bursts of calls into a single delayed call.
package debounce

import (
	"sync"
	"time"

	"github.com/nao1215/pagebeacon/internal/clock"
)

// DefaultWait is the quiet period used by the tracker's scroll and focus handlers.
const DefaultWait = 500 * time.Millisecond

// Debouncer runs the most recently scheduled function once no new call
// has been scheduled for the wait duration. It holds at most one pending
// timer; scheduling again replaces it.
//
// A scheduled function never runs synchronously inside Schedule.
type Debouncer struct {
	mu    sync.Mutex
	clock clock.Clock
	wait  time.Duration
	timer clock.Timer
	gen   uint64
}

// New creates a Debouncer. A nil clock means clock.Real and a
// non-positive wait means DefaultWait.
func New(c clock.Clock, wait time.Duration) *Debouncer {
	if c == nil {
		c = clock.Real{}
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Debouncer{clock: c, wait: wait}
}

// Wait returns the configured quiet period.
func (d *Debouncer) Wait() time.Duration {
	return d.wait
}

// Schedule cancels any pending call and schedules fn after the wait.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.mu.Lock()
		// A timer that lost a Stop race must not run a superseded call.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// CancelPending drops the pending call, if any.
func (d *Debouncer) CancelPending() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
