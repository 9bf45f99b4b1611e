package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/pagebeacon/internal/collector"
	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/model"
	"github.com/nao1215/pagebeacon/internal/report"
)

type discardStore struct{}

func (discardStore) InsertEvent(context.Context, *model.Event) error { return nil }

const docsScenario = `
name: docs-visit
url: https://www.example.com/docs
viewport: {width: 1000, height: 1000}
document_height: 5000
auto_track: true
html: |
  <html><head><title>Docs</title></head>
  <body><a href="/files/guide.pdf">Guide</a></body></html>
steps:
  - {action: wait, duration: 2s}
  - {action: scroll, percent: 95}
  - {action: wait, duration: 1s}
  - {action: click, selector: a}
  - {action: unload}
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}
	return path
}

// execute runs the root command and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReplayCollectReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, "provider: ga4\n")
	scenarioPath := writeScenario(t, dir, "docs.yaml", docsScenario)

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	srv := httptest.NewServer(collector.NewServer(db, "",
		collector.WithLogger(slog.New(slog.DiscardHandler))).Handler())

	out, err := execute(t, "replay", "-c", configPath,
		"--endpoint", srv.URL+collector.PathGA4,
		"--tracking-id", "G-CLI",
		"--json", scenarioPath)
	srv.Close()
	if closeErr := db.Close(); closeErr != nil {
		t.Fatalf("failed to close database: %v", closeErr)
	}
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	var replay report.JSONReplay
	if err := json.Unmarshal([]byte(out), &replay); err != nil {
		t.Fatalf("invalid replay JSON: %v\n%s", err, out)
	}
	if replay.Totals.Scenarios != 1 || replay.Totals.Sent != 4 || replay.Totals.Failed != 0 {
		t.Errorf("unexpected totals %+v", replay.Totals)
	}

	out, err = execute(t, "report", "-c", configPath, "--db-dir", dir, "--json")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	var summary report.JSONSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid summary JSON: %v\n%s", err, out)
	}
	if summary.Summary.TotalEvents != 4 {
		t.Errorf("expected 4 stored events, got %d", summary.Summary.TotalEvents)
	}
	for _, name := range []string{"page_view", "scroll", "file_download", "user_engagement"} {
		if summary.Summary.EventCounts[name] != 1 {
			t.Errorf("expected one %s event, got %d", name, summary.Summary.EventCounts[name])
		}
	}
	if summary.Summary.Clients != 1 || len(summary.Summary.Sessions) != 1 {
		t.Errorf("expected one client and session, got %d and %d",
			summary.Summary.Clients, len(summary.Summary.Sessions))
	}
	if summary.Summary.EngagementSeconds != 3 {
		t.Errorf("expected 3 engaged seconds, got %d", summary.Summary.EngagementSeconds)
	}

	t.Run("event filter", func(t *testing.T) {
		out, err := execute(t, "report", "-c", configPath, "--db-dir", dir, "--json", "--event", "scroll")
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		var filtered report.JSONSummary
		if err := json.Unmarshal([]byte(out), &filtered); err != nil {
			t.Fatalf("invalid summary JSON: %v", err)
		}
		if filtered.Summary.TotalEvents != 1 {
			t.Errorf("expected 1 scroll event, got %d", filtered.Summary.TotalEvents)
		}
	})

	t.Run("markdown report to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "summary.md")
		if _, err := execute(t, "report", "-c", configPath, "--db-dir", dir, "-m", "-o", path); err != nil {
			t.Fatalf("report failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "file_download") {
			t.Errorf("expected markdown to mention file_download, got:\n%s", data)
		}
	})
}

func TestReplayPersistIdentity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, "{}\n")
	srv := httptest.NewServer(collector.NewServer(discardStore{}, "").Handler())
	defer srv.Close()

	scenarioPath := writeScenario(t, dir, "visit.yaml",
		"url: https://example.com/\ntracking_id: G-P\nsteps: [{action: track}]\n")

	clientID := func() string {
		out, err := execute(t, "replay", "-c", configPath,
			"--endpoint", srv.URL+collector.PathGA4,
			"--persist-identity", "--db-dir", dir,
			"--json", scenarioPath)
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}
		var replay report.JSONReplay
		if err := json.Unmarshal([]byte(out), &replay); err != nil {
			t.Fatalf("invalid replay JSON: %v", err)
		}
		if len(replay.Results) != 1 || replay.Results[0].ClientID == "" {
			t.Fatalf("expected one result with a client id, got %+v", replay.Results)
		}
		return replay.Results[0].ClientID
	}

	first, second := clientID(), clientID()
	if first != second {
		t.Errorf("expected the same client id across replays, got %q and %q", first, second)
	}
}

func TestReplayErrors(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, "{}\n")

	t.Run("no scenarios", func(t *testing.T) {
		t.Parallel()
		if _, err := execute(t, "replay", "-c", configPath); err == nil ||
			!strings.Contains(err.Error(), config.ErrNoScenario.Error()) {
			t.Errorf("expected no scenario error, got %v", err)
		}
	})

	t.Run("missing scenario file", func(t *testing.T) {
		t.Parallel()
		if _, err := execute(t, "replay", "-c", configPath, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing scenario file")
		}
	})

	t.Run("invalid proxy", func(t *testing.T) {
		t.Parallel()
		path := writeScenario(t, t.TempDir(), "v.yaml", "url: https://example.com/\nsteps: [{action: track}]\n")
		if _, err := execute(t, "replay", "-c", configPath, "--proxy", "not-a-proxy", path); err == nil {
			t.Error("expected error for invalid proxy address")
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()
		path := writeScenario(t, t.TempDir(), "v.yaml", "url: https://example.com/\nsteps: [{action: track}]\n")
		if _, err := execute(t, "replay", "-c", configPath, "-j", "-m", path); err == nil {
			t.Error("expected error for --json with --markdown")
		}
	})
}

func TestReportMissingDatabase(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, "{}\n")
	if _, err := execute(t, "report", "-c", configPath, "--db-dir", t.TempDir()); err == nil {
		t.Error("expected error when no events were collected yet")
	}
}

func TestRunCollect(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, "{}\n")
	cmd := standalone(t, NewCollectCmd(), configPath, "--listen", "127.0.0.1:0", "--db-dir", t.TempDir())
	var out bytes.Buffer
	cmd.SetOut(&out)

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runCollect(ctx, cmd, cfg, slog.New(slog.DiscardHandler))
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not shut down")
	}
	if !strings.Contains(out.String(), "Collecting hits on http://127.0.0.1:0") {
		t.Errorf("unexpected output %q", out.String())
	}
}
