package model

import (
	"net/url"
	"testing"
	"time"
)

func TestFromGA4(t *testing.T) {
	t.Parallel()

	t.Run("decodes core fields and strips event param prefixes", func(t *testing.T) {
		t.Parallel()

		values, err := url.ParseQuery("v=2&tid=G-TEST&cid=111&sid=222&sct=3&_fv=1&_ss=1&dl=https%3A%2F%2Fexample.com%2F&dt=Home&en=scroll&epn.percent_scrolled=90&ep.link_url=x")
		if err != nil {
			t.Fatal(err)
		}

		ev := FromGA4(values)

		if ev.Provider != ProviderGA4 {
			t.Errorf("expected provider ga4, got %s", ev.Provider)
		}
		if ev.Name != EventScroll {
			t.Errorf("expected name scroll, got %s", ev.Name)
		}
		if ev.ClientID != "111" || ev.SessionID != "222" || ev.SessionCount != 3 {
			t.Errorf("unexpected identity fields: %+v", ev)
		}
		if !ev.FirstVisit || !ev.SessionStart {
			t.Error("expected first visit and session start flags")
		}
		if ev.Location != "https://example.com/" {
			t.Errorf("expected decoded location, got %s", ev.Location)
		}
		if ev.Params["percent_scrolled"] != "90" {
			t.Errorf("expected percent_scrolled=90, got %q", ev.Params["percent_scrolled"])
		}
		if ev.Params["link_url"] != "x" {
			t.Errorf("expected link_url=x, got %q", ev.Params["link_url"])
		}
		if _, ok := ev.Params["tid"]; ok {
			t.Error("mapped keys must not be copied into params")
		}
	})

	t.Run("engagement read from _et", func(t *testing.T) {
		t.Parallel()

		ev := FromGA4(url.Values{"en": {"user_engagement"}, "_et": {"42"}})
		if ev.EngagementSeconds != 42 {
			t.Errorf("expected 42, got %d", ev.EngagementSeconds)
		}
	})

	t.Run("invalid session count is zero", func(t *testing.T) {
		t.Parallel()

		ev := FromGA4(url.Values{"sct": {"abc"}})
		if ev.SessionCount != 0 {
			t.Errorf("expected 0, got %d", ev.SessionCount)
		}
	})
}

func TestFromHeap(t *testing.T) {
	t.Parallel()

	t.Run("page view", func(t *testing.T) {
		t.Parallel()

		values := url.Values{
			"a": {"app"}, "u": {"u1"}, "s": {"s1"},
			"d": {"example.com"}, "h": {"/articles/"}, "t": {"Articles"},
		}
		ev := FromHeap(values)

		if ev.Name != EventPageView {
			t.Errorf("expected page_view, got %s", ev.Name)
		}
		if ev.Location != "//example.com/articles/" {
			t.Errorf("unexpected location %s", ev.Location)
		}
		if ev.Title != "Articles" {
			t.Errorf("expected title Articles, got %s", ev.Title)
		}
	})

	t.Run("click with page params", func(t *testing.T) {
		t.Parallel()

		values := url.Values{
			"a":  {"app"},
			"t0": {"click"},
			"n0": {"a"},
			"y0": {"@a;|"},
			"pp": {"d", "example.com", "h", "/", "t", "Home"},
		}
		ev := FromHeap(values)

		if ev.Name != EventClick {
			t.Errorf("expected click, got %s", ev.Name)
		}
		if ev.Params["n"] != "a" || ev.Params["y"] != "@a;|" {
			t.Errorf("unexpected params %v", ev.Params)
		}
		if ev.Location != "//example.com/" || ev.Title != "Home" {
			t.Errorf("page params not decoded: %+v", ev)
		}
	})
}

func TestFromHeapCustomProperties(t *testing.T) {
	t.Parallel()

	ev := FromHeap(url.Values{"t0": {"user_engagement"}, "k0": {"engagement_time=9;foo=bar"}})

	if ev.Name != EventUserEngagement || ev.EngagementSeconds != 9 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Params["foo"] != "bar" {
		t.Errorf("expected custom property foo, got %v", ev.Params)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Name: EventPageView, ClientID: "c1", SessionID: "s1", Location: "/a", ReceivedAt: base},
		{Name: EventScroll, ClientID: "c1", SessionID: "s1", ReceivedAt: base.Add(time.Second)},
		{Name: EventUserEngagement, ClientID: "c1", SessionID: "s1", EngagementSeconds: 12, ReceivedAt: base.Add(2 * time.Second)},
		{Name: EventPageView, ClientID: "c2", SessionID: "s9", Location: "/b", ReceivedAt: base.Add(-time.Minute)},
	}

	s := Summarize(events, base)

	if s.TotalEvents != 4 {
		t.Errorf("expected 4 events, got %d", s.TotalEvents)
	}
	if s.Clients != 2 {
		t.Errorf("expected 2 clients, got %d", s.Clients)
	}
	if s.EngagementSeconds != 12 {
		t.Errorf("expected 12 engagement seconds, got %d", s.EngagementSeconds)
	}
	if len(s.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(s.Sessions))
	}
	if s.Sessions[0].SessionID != "s9" {
		t.Errorf("expected earliest session first, got %s", s.Sessions[0].SessionID)
	}
	if s.Sessions[1].Events != 3 || s.Sessions[1].LastSeen != base.Add(2*time.Second) {
		t.Errorf("unexpected session summary %+v", s.Sessions[1])
	}

	names := s.EventNames()
	if names[0] != EventPageView {
		t.Errorf("expected page_view to be most frequent, got %v", names)
	}
}

func TestNewEventID(t *testing.T) {
	t.Parallel()

	a, b := NewEventID(), NewEventID()
	if a == "" || a == b {
		t.Errorf("expected distinct ids, got %q and %q", a, b)
	}
}
