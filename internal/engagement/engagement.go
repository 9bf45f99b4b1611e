// Package engagement accumulates the time a page spends visible.
package engagement

import (
	"sync"
	"time"

	"github.com/nao1215/pagebeacon/internal/clock"
	"github.com/nao1215/pagebeacon/internal/debounce"
	"github.com/nao1215/pagebeacon/internal/env"
)

// Interval is one stretch of visibility. HiddenAt is nil while open.
type Interval struct {
	VisibleAt time.Time
	HiddenAt  *time.Time
}

// Duration returns the interval length, using now for an open interval.
func (i Interval) Duration(now time.Time) time.Duration {
	end := now
	if i.HiddenAt != nil {
		end = *i.HiddenAt
	}
	if end.Before(i.VisibleAt) {
		return 0
	}
	return end.Sub(i.VisibleAt)
}

// Timer tracks visibility intervals. It starts visible with one open
// interval; at most one interval is open at any time.
type Timer struct {
	mu        sync.Mutex
	clock     clock.Clock
	focus     *debounce.Debouncer
	intervals []Interval
}

// Option configures a Timer.
type Option func(*Timer)

// WithFocusDebounce sets the quiet period for focus events.
func WithFocusDebounce(wait time.Duration) Option {
	return func(t *Timer) {
		t.focus = debounce.New(t.clock, wait)
	}
}

// New creates a Timer that is visible as of c.Now().
func New(c clock.Clock, opts ...Option) *Timer {
	if c == nil {
		c = clock.Real{}
	}
	t := &Timer{clock: c}
	t.focus = debounce.New(c, debounce.DefaultWait)
	for _, opt := range opts {
		opt(t)
	}
	t.intervals = []Interval{{VisibleAt: c.Now()}}
	return t
}

// Visible reports whether an interval is open.
func (t *Timer) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openLocked()
}

// Hide closes the open interval. It is a no-op when already hidden.
func (t *Timer) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.openLocked() {
		return
	}
	now := t.clock.Now()
	last := &t.intervals[len(t.intervals)-1]
	if now.Before(last.VisibleAt) {
		now = last.VisibleAt
	}
	last.HiddenAt = &now
}

// Show opens a new interval. It is a no-op when already visible.
func (t *Timer) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openLocked() {
		return
	}
	now := t.clock.Now()
	if last := t.intervals[len(t.intervals)-1]; last.HiddenAt != nil && now.Before(*last.HiddenAt) {
		now = *last.HiddenAt
	}
	t.intervals = append(t.intervals, Interval{VisibleAt: now})
}

// OnVisibilityChange applies a document visibility state change.
func (t *Timer) OnVisibilityChange(state env.VisibilityState) {
	if state == env.VisibilityHidden {
		t.Hide()
		return
	}
	t.Show()
}

// OnBlur hides immediately and drops a pending focus.
func (t *Timer) OnBlur() {
	t.focus.CancelPending()
	t.Hide()
}

// OnFocus schedules Show after the focus quiet period.
func (t *Timer) OnFocus() {
	t.focus.Schedule(t.Show)
}

// Stop drops a pending focus transition.
func (t *Timer) Stop() {
	t.focus.CancelPending()
}

// ActiveTime sums all intervals, counting an open one up to now.
func (t *Timer) ActiveTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	var total time.Duration
	for _, iv := range t.intervals {
		total += iv.Duration(now)
	}
	return total
}

// ActiveSeconds returns ActiveTime in whole seconds, truncated.
func (t *Timer) ActiveSeconds() int {
	return int(t.ActiveTime() / time.Second)
}

// Intervals returns a copy of the recorded intervals.
func (t *Timer) Intervals() []Interval {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Interval, len(t.intervals))
	for i, iv := range t.intervals {
		out[i] = iv
		if iv.HiddenAt != nil {
			h := *iv.HiddenAt
			out[i].HiddenAt = &h
		}
	}
	return out
}

func (t *Timer) openLocked() bool {
	return t.intervals[len(t.intervals)-1].HiddenAt == nil
}
