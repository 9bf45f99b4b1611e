package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual(t *testing.T) {
	t.Parallel()

	t.Run("advance moves now", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		c.Advance(3 * time.Second)

		if got := c.Now().Sub(epoch); got != 3*time.Second {
			t.Errorf("expected 3s elapsed, got %v", got)
		}
	})

	t.Run("timers fire in deadline order", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		var order []string
		c.AfterFunc(2*time.Second, func() { order = append(order, "late") })
		c.AfterFunc(time.Second, func() { order = append(order, "early") })

		c.Advance(5 * time.Second)

		if len(order) != 2 || order[0] != "early" || order[1] != "late" {
			t.Errorf("expected [early late], got %v", order)
		}
	})

	t.Run("timer sees its own deadline as now", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		var seen time.Time
		c.AfterFunc(time.Second, func() { seen = c.Now() })

		c.Advance(10 * time.Second)

		if !seen.Equal(epoch.Add(time.Second)) {
			t.Errorf("expected callback at +1s, got %v", seen.Sub(epoch))
		}
	})

	t.Run("timer not fired before deadline", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		fired := false
		c.AfterFunc(time.Second, func() { fired = true })

		c.Advance(999 * time.Millisecond)

		if fired {
			t.Error("timer fired before its deadline")
		}
		if c.Pending() != 1 {
			t.Errorf("expected 1 pending timer, got %d", c.Pending())
		}
	})

	t.Run("stopped timer does not fire", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		fired := false
		timer := c.AfterFunc(time.Second, func() { fired = true })

		if !timer.Stop() {
			t.Error("expected first Stop to return true")
		}
		if timer.Stop() {
			t.Error("expected second Stop to return false")
		}
		c.Advance(2 * time.Second)

		if fired {
			t.Error("stopped timer fired")
		}
	})

	t.Run("callback can schedule another timer", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		count := 0
		c.AfterFunc(time.Second, func() {
			count++
			c.AfterFunc(time.Second, func() { count++ })
		})

		c.Advance(2 * time.Second)

		if count != 2 {
			t.Errorf("expected 2 callbacks, got %d", count)
		}
	})

	t.Run("set backwards is ignored", func(t *testing.T) {
		t.Parallel()

		c := NewManual(epoch)
		c.Set(epoch.Add(-time.Hour))

		if !c.Now().Equal(epoch) {
			t.Errorf("expected clock to stay at epoch, got %v", c.Now())
		}
	})
}

func TestReal(t *testing.T) {
	t.Parallel()

	var c Clock = Real{}
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
