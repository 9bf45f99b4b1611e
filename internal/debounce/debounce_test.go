package debounce

import (
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/clock"
)

func newTestDebouncer() (*Debouncer, *clock.Manual) {
	c := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(c, 500*time.Millisecond), c
}

func TestDebouncer(t *testing.T) {
	t.Parallel()

	t.Run("runs after quiet period", func(t *testing.T) {
		t.Parallel()

		d, c := newTestDebouncer()
		calls := 0
		d.Schedule(func() { calls++ })

		if calls != 0 {
			t.Fatal("scheduled function ran synchronously")
		}
		c.Advance(500 * time.Millisecond)

		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if d.Pending() {
			t.Error("expected nothing pending after run")
		}
	})

	t.Run("burst collapses to last call", func(t *testing.T) {
		t.Parallel()

		d, c := newTestDebouncer()
		var got []int
		for i := range 5 {
			d.Schedule(func() { got = append(got, i) })
			c.Advance(100 * time.Millisecond)
		}
		c.Advance(time.Second)

		if len(got) != 1 || got[0] != 4 {
			t.Errorf("expected only the last call [4], got %v", got)
		}
	})

	t.Run("cancel pending drops call", func(t *testing.T) {
		t.Parallel()

		d, c := newTestDebouncer()
		calls := 0
		d.Schedule(func() { calls++ })
		if !d.Pending() {
			t.Fatal("expected pending call")
		}

		d.CancelPending()
		c.Advance(time.Second)

		if calls != 0 {
			t.Errorf("expected 0 calls, got %d", calls)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()

		d := New(nil, 0)
		if d.Wait() != DefaultWait {
			t.Errorf("expected %v, got %v", DefaultWait, d.Wait())
		}
	})
}
