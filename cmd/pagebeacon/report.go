package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize events stored by the collector",
		Long: `Report reads the events stored by "pagebeacon collect" and prints totals,
per-event counts and per-session engagement.

Examples:
  # Summarize everything
  pagebeacon report

  # Only the last hour of file downloads, as Markdown
  pagebeacon report --since 1h --event file_download -m

  # JSON report written to a file
  pagebeacon report -j -o reports/today.json`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().StringP("event", "e", "",
		"Only include events with this name")
	cmd.Flags().StringP("tracking-id", "i", "",
		"Only include events for this tracking ID")
	cmd.Flags().Duration("since", 0,
		"Only include events received within this duration (e.g., 24h)")
	cmd.Flags().Int("limit", 0,
		"Maximum number of events to read (0 means no limit)")

	addReportFlags(cmd)

	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	filter, err := buildEventFilter(cmd, cfg, time.Now())
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, false)
	slog.SetDefault(logger)

	return runReport(cmd.Context(), cmd, cfg, filter)
}

// buildEventFilter turns the filter flags into a database filter. Only an
// explicit --tracking-id narrows by property.
func buildEventFilter(cmd *cobra.Command, cfg *config.Config, now time.Time) (database.EventFilter, error) {
	var filter database.EventFilter
	var err error

	if filter.Name, err = cmd.Flags().GetString("event"); err != nil {
		return filter, err
	}
	if changed(cmd, "tracking-id") {
		filter.TrackingID = cfg.TrackingID
	}

	since, err := cmd.Flags().GetDuration("since")
	if err != nil {
		return filter, err
	}
	if since < 0 {
		return filter, fmt.Errorf("--since must not be negative: %s", since)
	}
	if since > 0 {
		filter.Since = now.Add(-since)
	}

	if filter.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return filter, err
	}
	if filter.Limit < 0 {
		return filter, fmt.Errorf("--limit must not be negative: %d", filter.Limit)
	}
	return filter, nil
}

func runReport(ctx context.Context, cmd *cobra.Command, cfg *config.Config, filter database.EventFilter) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	summary, err := db.Summary(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to summarize events: %w", err)
	}

	out, closeOut, err := openOutput(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // write errors are reported by Write

	if _, err := newReportWriter(cmd, out, cfg).Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
