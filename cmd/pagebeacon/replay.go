package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/scenario"
	"github.com/nao1215/pagebeacon/internal/storage"
	"github.com/nao1215/pagebeacon/internal/tracker"
	"github.com/nao1215/pagebeacon/internal/transport"
	"github.com/spf13/cobra"
)

// identityScope is the database scope holding persisted client storage.
const identityScope = "local"

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [scenario-file...]",
		Short: "Replay scripted page visits through the tracker",
		Long: `Replay loads scenario files and drives the tracker through each scripted
visit on a simulated clock. Every hit the tracker produces is delivered
over HTTP to the provider endpoint, or to --endpoint when given.

A scenario names the page (url, html or html_file, geometry) and a list of
steps: wait, hide, show, blur, focus, scroll, click, track, flush,
exception, unload and reload.

Examples:
  # Replay against the local collector
  pagebeacon replay --endpoint http://127.0.0.1:8787/g/collect visit.yaml

  # Replay several scenarios two at a time as Heap traffic
  pagebeacon replay --provider heap --endpoint http://127.0.0.1:8787/h -b 2 a.yaml b.yaml

  # Keep the same visitor across runs and write a Markdown report
  pagebeacon replay --persist-identity -m -o replay.md visit.yaml

Scenario file example:
  name: pricing visit
  tracking_id: G-XXXXXXX
  url: https://example.com/pricing
  html_file: pricing.html
  steps:
    - {action: wait, duration: 3s}
    - {action: scroll, percent: 95}
    - {action: wait, duration: 1s}
    - {action: click, selector: "a.download"}
    - {action: unload}`,
		Args: cobra.ArbitraryArgs,
		RunE: runReplayCmd,
	}

	cmd.Flags().StringP("tracking-id", "i", "",
		"Tracking ID for scenarios that do not set one")
	cmd.Flags().StringP("provider", "P", config.DefaultProvider,
		"Wire format: ga4 or heap")
	cmd.Flags().StringP("endpoint", "E", "",
		"Collector URL overriding the provider endpoint")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address for outbound hits (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each outbound hit")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent replays")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for outbound hits")

	cmd.Flags().String("click-selector", "",
		"CSS selector for trackable elements (default: links and buttons)")
	cmd.Flags().Int("scroll-threshold", config.DefaultScrollThreshold,
		"Scroll percentage reported once per page load")
	cmd.Flags().Duration("debounce", config.DefaultDebounceWait,
		"Quiet period for scroll and focus handlers")
	cmd.Flags().Bool("legacy-session-counter", false,
		"Increment the session counter on every hit")
	cmd.Flags().Bool("debug", false,
		"Mark every hit for the provider debug view")
	cmd.Flags().Bool("persist-identity", false,
		"Keep the client id in the database between replays")
	cmd.Flags().String("db-dir", "",
		"Database directory used by --persist-identity (default: XDG data directory)")
	cmd.Flags().Bool("continue-on-error", false,
		"Keep replaying a scenario after a failed step")

	addReportFlags(cmd)

	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Scenarios = args

	if err := cfg.ValidateReplay(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	continueOnError, err := cmd.Flags().GetBool("continue-on-error")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, false)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runReplay(ctx, cmd, cfg, continueOnError, logger)
}

func runReplay(ctx context.Context, cmd *cobra.Command, cfg *config.Config, continueOnError bool, logger *slog.Logger) error {
	scenarios := make([]*scenario.Scenario, 0, len(cfg.Scenarios))
	for _, path := range cfg.Scenarios {
		sc, err := scenario.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load scenario %s: %w", path, err)
		}
		scenarios = append(scenarios, sc)
	}

	client, err := transport.NewHTTPClient(cfg.ProxyAddress, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	tr := transport.NewHTTP(client, cfg.UserAgent, transport.WithLogger(logger))

	opts := []scenario.Option{
		scenario.WithLogger(logger),
		scenario.WithTrackingID(cfg.TrackingID),
		scenario.WithProvider(cfg.Provider),
		scenario.WithEndpoint(cfg.Endpoint),
		scenario.WithContinueOnError(continueOnError),
		scenario.WithTrackerDefaults(tracker.Config{
			ClickSelector:        cfg.ClickSelector,
			ScrollThreshold:      cfg.ScrollThreshold,
			DebounceWait:         cfg.DebounceWait,
			LegacySessionCounter: cfg.LegacySessionCounter,
			Debug:                cfg.Debug,
		}),
	}

	if cfg.PersistIdentity {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("persisting identity", "path", db.Path())

		local := storage.NewSQLite(db, identityScope)
		opts = append(opts, scenario.WithStorage(func() (storage.Storage, storage.Storage) {
			return local, storage.NewMemory()
		}))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Replaying %d scenario(s) (concurrency: %d)...\n",
		len(scenarios), cfg.BatchSize)

	batch := scenario.NewBatchRunner(
		func() *scenario.Runner { return scenario.NewRunner(tr, opts...) },
		scenario.WithConcurrency(cfg.BatchSize),
		scenario.WithBatchLogger(logger),
	)
	results, runErr := batch.Run(ctx, scenarios)

	// Beacons and fetches are asynchronous; let them land before reporting.
	tr.Wait()

	if err := writeReplayReport(cmd, cfg, results); err != nil {
		return err
	}
	return runErr
}

func writeReplayReport(cmd *cobra.Command, cfg *config.Config, results []*scenario.Result) error {
	// Cancelled replays leave nil entries.
	done := make([]*scenario.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			done = append(done, r)
		}
	}

	out, closeOut, err := openOutput(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // write errors are reported by WriteReplay

	if _, err := newReportWriter(cmd, out, cfg).WriteReplay(done); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
