package env

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Location
	}{
		{
			name: "full url",
			raw:  "https://example.com:8443/search?q=go#top",
			want: Location{
				Origin:   "https://example.com:8443",
				Host:     "example.com:8443",
				Hostname: "example.com",
				Pathname: "/search",
				Search:   "?q=go",
				Hash:     "#top",
			},
		},
		{
			name: "empty path becomes root",
			raw:  "https://example.com",
			want: Location{
				Origin:   "https://example.com",
				Host:     "example.com",
				Hostname: "example.com",
				Pathname: "/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLocation(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	t.Run("href omits hash", func(t *testing.T) {
		t.Parallel()

		loc, _ := ParseLocation("https://example.com/a?b=c#d")
		if loc.Href() != "https://example.com/a?b=c" {
			t.Errorf("unexpected href %s", loc.Href())
		}
	})
}

func TestPage(t *testing.T) {
	t.Parallel()

	p, err := NewPage("https://example.com/",
		WithTitle("Home"),
		WithViewport(1280, 800),
		WithScreen(1920, 1080),
		WithDocumentHeight(3000),
		WithLanguage("en-US"),
	)
	if err != nil {
		t.Fatal(err)
	}

	if p.VisibilityState() != VisibilityVisible {
		t.Errorf("expected visible page, got %s", p.VisibilityState())
	}
	if p.Screen().String() != "1920x1080" {
		t.Errorf("unexpected screen %s", p.Screen())
	}
	if got := p.Scroll().DocumentHeight(); got != 3000 {
		t.Errorf("expected document height 3000, got %v", got)
	}
	if got := p.Scroll().ViewportHeight; got != 800 {
		t.Errorf("expected viewport height 800, got %v", got)
	}

	p.SetVisibility(VisibilityHidden)
	p.SetScrollTop(100)
	if p.VisibilityState() != VisibilityHidden || p.Scroll().ScrollTop != 100 {
		t.Error("setters did not apply")
	}

	if (Size{}).String() != "" {
		t.Error("expected empty string for zero size")
	}
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("listeners run in order", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(nil)
		var order []int
		d.AddEventListener("click", func(Event) { order = append(order, 1) })
		d.AddEventListener("click", func(Event) { order = append(order, 2) })
		d.AddEventListener("scroll", func(Event) { order = append(order, 3) })

		d.Dispatch(Event{Type: "click"})

		if len(order) != 2 || order[0] != 1 || order[1] != 2 {
			t.Errorf("expected [1 2], got %v", order)
		}
	})

	t.Run("remove detaches listener", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(nil)
		calls := 0
		reg := d.AddEventListener("scroll", func(Event) { calls++ })
		d.Dispatch(Event{Type: "scroll"})
		reg.Remove()
		reg.Remove()
		d.Dispatch(Event{Type: "scroll"})

		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if d.ListenerCount("scroll") != 0 {
			t.Errorf("expected no listeners, got %d", d.ListenerCount("scroll"))
		}
	})

	t.Run("listener may remove itself during dispatch", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(nil)
		calls := 0
		var reg Registration
		reg = d.AddEventListener("scroll", func(Event) {
			calls++
			reg.Remove()
		})
		d.Dispatch(Event{Type: "scroll"})
		d.Dispatch(Event{Type: "scroll"})

		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("panicking listener does not stop others", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		d := NewDispatcher(slog.New(slog.NewTextHandler(&buf, nil)))
		ran := false
		d.AddEventListener("click", func(Event) { panic("boom") })
		d.AddEventListener("click", func(Event) { ran = true })

		d.Dispatch(Event{Type: "click"})

		if !ran {
			t.Error("expected second listener to run")
		}
		if !strings.Contains(buf.String(), "event listener panicked") {
			t.Errorf("expected panic to be logged, got %q", buf.String())
		}
	})

	t.Run("event types are case insensitive", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(nil)
		calls := 0
		d.AddEventListener("PageHide", func(Event) { calls++ })
		d.Dispatch(Event{Type: "pagehide"})

		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}
