package tracker

import (
	"log/slog"
	"sync/atomic"
)

var defaultTracker atomic.Pointer[Tracker]

// SetDefault registers t as the process-wide tracker used by Track.
func SetDefault(t *Tracker) {
	defaultTracker.Store(t)
}

// Default returns the registered tracker, or nil.
func Default() *Tracker {
	return defaultTracker.Load()
}

// Track sends an event through the default tracker.
func Track(opts Options) bool {
	t := Default()
	if t == nil {
		slog.Error("no default tracker registered", "event", opts.Type)
		return false
	}
	return t.Track(opts)
}
