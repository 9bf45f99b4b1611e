package collector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/clock"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/identity"
	"github.com/nao1215/pagebeacon/internal/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewServer(db, "127.0.0.1:0",
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(clock.NewManual(epoch)),
	)
	return s, db
}

func listEvents(t *testing.T, db *database.DB) []model.Event {
	t.Helper()

	events, err := db.ListEvents(context.Background(), database.EventFilter{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	return events
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _ := setupTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathHealth, nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("GA4 GET hit is stored", func(t *testing.T) {
		t.Parallel()

		s, db := setupTestServer(t)
		req := httptest.NewRequest(http.MethodGet,
			PathGA4+"?v=2&tid=G-TEST&cid=111&sid=222&sct=3&_fv=1&en=scroll&epn.percent_scrolled=90&dl=https%3A%2F%2Fexample.com%2F", nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		events := listEvents(t, db)
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		ev := events[0]
		if ev.Name != "scroll" || ev.SessionCount != 3 || !ev.FirstVisit || ev.Params["percent_scrolled"] != "90" {
			t.Errorf("unexpected event %+v", ev)
		}
		if !ev.ReceivedAt.Equal(epoch) {
			t.Errorf("expected receive time %v, got %v", epoch, ev.ReceivedAt)
		}
	})

	t.Run("POST body lines become separate events", func(t *testing.T) {
		t.Parallel()

		s, db := setupTestServer(t)
		body := "en=page_view\n\nen=user_engagement&_et=4\n"
		req := httptest.NewRequest(http.MethodPost, PathGA4+"?v=2&tid=G-TEST&cid=1&sid=2", strings.NewReader(body))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		events := listEvents(t, db)
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[1].Name != "user_engagement" || events[1].EngagementSeconds != 4 || events[1].ClientID != "1" {
			t.Errorf("unexpected second event %+v", events[1])
		}
	})

	t.Run("Heap click hit", func(t *testing.T) {
		t.Parallel()

		s, db := setupTestServer(t)
		req := httptest.NewRequest(http.MethodGet,
			PathHeap+"?a=123&u=9&s=8&pp=d&pp=example.com&pp=h&pp=%2Fdocs&t0=click&n0=a&h0=https%3A%2F%2Fother.example", nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		ev := listEvents(t, db)[0]
		if ev.Provider != model.ProviderHeap || ev.Name != "click" || ev.Location != "//example.com/docs" {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("rejects hits without tracking id", func(t *testing.T) {
		t.Parallel()

		s, db := setupTestServer(t)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathGA4+"?en=page_view", nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
		if n := len(listEvents(t, db)); n != 0 {
			t.Errorf("expected nothing stored, got %d", n)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, PathHeap, nil))

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})

	t.Run("answers CORS preflight", func(t *testing.T) {
		t.Parallel()

		s, _ := setupTestServer(t)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, PathGA4, nil))

		if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("unexpected preflight response %d %v", w.Code, w.Header())
		}
	})
}

type failingStore struct{}

func (failingStore) InsertEvent(context.Context, *model.Event) error {
	return errors.New("disk full")
}

func TestCollectLogsClientDigest(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var logs bytes.Buffer
	s := NewServer(db, "127.0.0.1:0",
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithClock(clock.NewManual(epoch)),
	)
	for range 2 {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathGA4+"?v=2&tid=G-TEST&cid=4242424242&en=scroll", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	}

	out := logs.String()
	digest := "client=" + identity.HashID("4242424242", identity.MaxIDLength)
	if strings.Count(out, digest) != 2 {
		t.Errorf("expected the same client digest on both hits, got %q", out)
	}
	if strings.Contains(out, "4242424242") {
		t.Error("expected the raw client id to stay out of the log")
	}
}

func TestCollectStoreFailure(t *testing.T) {
	t.Parallel()

	s := NewServer(failingStore{}, "127.0.0.1:0", WithLogger(slog.New(slog.DiscardHandler)))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathGA4+"?tid=G-TEST&en=page_view", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	s, db := setupTestServer(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + PathGA4 + "?tid=G-TEST&en=page_view")
	if err != nil {
		cancel()
		t.Fatalf("request failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
	if n := len(listEvents(t, db)); n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}
