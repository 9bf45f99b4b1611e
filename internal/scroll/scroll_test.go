package scroll

import (
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/clock"
	"github.com/nao1215/pagebeacon/internal/debounce"
	"github.com/nao1215/pagebeacon/internal/env"
)

func TestPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		metrics env.ScrollMetrics
		want    int
	}{
		{
			name:    "top of page",
			metrics: env.ScrollMetrics{ScrollTop: 0, ViewportHeight: 1000, DocScrollHeight: 3000},
			want:    0,
		},
		{
			name:    "half way",
			metrics: env.ScrollMetrics{ScrollTop: 1000, ViewportHeight: 1000, DocScrollHeight: 3000},
			want:    50,
		},
		{
			name:    "floors fractional percent",
			metrics: env.ScrollMetrics{ScrollTop: 1799, ViewportHeight: 1000, DocScrollHeight: 3000},
			want:    89,
		},
		{
			name: "uses largest reported height",
			metrics: env.ScrollMetrics{
				ScrollTop: 900, ViewportHeight: 1000,
				BodyScrollHeight: 1500, DocOffsetHeight: 2000, BodyClientHeight: 800,
			},
			want: 90,
		},
		{
			name:    "page shorter than viewport counts as scrolled",
			metrics: env.ScrollMetrics{ViewportHeight: 1000, DocScrollHeight: 600},
			want:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Percentage(tt.metrics); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

type fixture struct {
	clock   *clock.Manual
	page    *env.Page
	doc     *env.Dispatcher
	monitor *Monitor
	hits    []int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	page, err := env.NewPage("https://example.com/", env.WithViewport(1280, 1000), env.WithDocumentHeight(3000))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		clock: clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		page:  page,
		doc:   env.NewDispatcher(nil),
	}
	f.monitor = NewMonitor(page, debounce.New(f.clock, 500*time.Millisecond), func(p int) {
		f.hits = append(f.hits, p)
	})
	f.monitor.Attach(f.doc)
	return f
}

func (f *fixture) scrollTo(top float64) {
	f.page.SetScrollTop(top)
	f.doc.Dispatch(env.Event{Type: env.EventScroll})
}

func TestMonitor(t *testing.T) {
	t.Parallel()

	t.Run("fires once for burst past threshold", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.scrollTo(1900)
		f.scrollTo(2000)
		f.clock.Advance(time.Second)

		if len(f.hits) != 1 || f.hits[0] != DefaultThreshold {
			t.Errorf("expected one hit at %d, got %v", DefaultThreshold, f.hits)
		}
	})

	t.Run("detaches after firing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.scrollTo(2000)
		f.clock.Advance(time.Second)
		f.scrollTo(0)
		f.scrollTo(2000)
		f.clock.Advance(time.Second)

		if len(f.hits) != 1 {
			t.Errorf("expected exactly one hit, got %d", len(f.hits))
		}
		if f.doc.ListenerCount(env.EventScroll) != 0 {
			t.Error("expected scroll listener to be removed")
		}
		if !f.monitor.Fired() {
			t.Error("expected monitor to report fired")
		}
	})

	t.Run("evaluates settled position only", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.scrollTo(2000)
		f.clock.Advance(100 * time.Millisecond)
		f.scrollTo(100)
		f.clock.Advance(time.Second)

		if len(f.hits) != 0 {
			t.Errorf("expected no hit when settling above threshold, got %v", f.hits)
		}
	})

	t.Run("does not fire synchronously", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.scrollTo(2000)

		if len(f.hits) != 0 {
			t.Error("scroll handler must be debounced")
		}
	})

	t.Run("custom threshold", func(t *testing.T) {
		t.Parallel()

		page, _ := env.NewPage("https://example.com/", env.WithViewport(1280, 1000), env.WithDocumentHeight(3000))
		c := clock.NewManual(time.Now())
		var got []int
		m := NewMonitor(page, debounce.New(c, 0), func(p int) { got = append(got, p) }, WithThreshold(50))
		page.SetScrollTop(1000)
		m.OnScroll()
		c.Advance(time.Second)

		if len(got) != 1 || got[0] != 50 {
			t.Errorf("expected one hit at 50, got %v", got)
		}
	})
}
