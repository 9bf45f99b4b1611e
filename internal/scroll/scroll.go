// Package scroll detects when the reader reaches the bottom of a page.
package scroll

import (
	"math"
	"sync"

	"github.com/nao1215/pagebeacon/internal/debounce"
	"github.com/nao1215/pagebeacon/internal/env"
)

// DefaultThreshold is the scroll depth, in percent, that counts as a read.
const DefaultThreshold = 90

// Percentage returns how far the viewport has scrolled down the document.
// Documents shorter than the viewport count as fully scrolled.
func Percentage(m env.ScrollMetrics) int {
	track := m.DocumentHeight() - m.ViewportHeight
	if track <= 0 {
		return 100
	}
	return int(math.Floor(math.Abs(m.ScrollTop/track) * 100))
}

// Monitor fires a callback once, the first time a settled scroll
// position reaches the threshold. It then detaches itself.
type Monitor struct {
	mu        sync.Mutex
	env       env.Environment
	debouncer *debounce.Debouncer
	threshold int
	onReach   func(percent int)
	reg       env.Registration
	fired     bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(percent int) Option {
	return func(m *Monitor) {
		if percent > 0 {
			m.threshold = percent
		}
	}
}

// NewMonitor creates a Monitor reading scroll metrics from e.
// onReach receives the threshold that was crossed.
func NewMonitor(e env.Environment, d *debounce.Debouncer, onReach func(percent int), opts ...Option) *Monitor {
	m := &Monitor{
		env:       e,
		debouncer: d,
		threshold: DefaultThreshold,
		onReach:   onReach,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured threshold.
func (m *Monitor) Threshold() int {
	return m.threshold
}

// Attach subscribes the monitor to scroll events on target.
func (m *Monitor) Attach(target env.EventTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fired || m.reg != nil {
		return
	}
	m.reg = target.AddEventListener(env.EventScroll, func(env.Event) { m.OnScroll() })
}

// OnScroll schedules an evaluation after the scroll settles.
func (m *Monitor) OnScroll() {
	m.mu.Lock()
	fired := m.fired
	m.mu.Unlock()
	if fired {
		return
	}
	m.debouncer.Schedule(m.evaluate)
}

// Fired reports whether the threshold was reached.
func (m *Monitor) Fired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}

// Detach removes the scroll subscription and drops pending evaluations.
func (m *Monitor) Detach() {
	m.mu.Lock()
	reg := m.reg
	m.reg = nil
	m.mu.Unlock()

	m.debouncer.CancelPending()
	if reg != nil {
		reg.Remove()
	}
}

func (m *Monitor) evaluate() {
	if Percentage(m.env.Scroll()) < m.threshold {
		return
	}

	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		return
	}
	m.fired = true
	m.mu.Unlock()

	m.Detach()
	if m.onReach != nil {
		m.onReach(m.threshold)
	}
}
