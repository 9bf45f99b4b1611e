package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/pagebeacon/internal/collector"
	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/spf13/cobra"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a local collector that stores analytics hits",
		Long: `Collect starts an HTTP server that accepts GA4 (/g/collect) and Heap (/h)
hits and stores every decoded event in the local SQLite database.

Point "pagebeacon replay --endpoint" at the collector to capture replayed
traffic without sending anything to a real analytics service.

Examples:
  # Listen on the default loopback address
  pagebeacon collect

  # Listen on another address and emit JSON logs
  pagebeacon collect --listen 127.0.0.1:9000 --log-json -v`,
		Args: cobra.NoArgs,
		RunE: runCollectCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address the collector listens on")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

func runCollectCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, logJSON)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runCollect(ctx, cmd, cfg, logger)
}

func runCollect(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	server := collector.NewServer(db, cfg.ListenAddress, collector.WithLogger(logger))

	fmt.Fprintf(cmd.OutOrStdout(), "Collecting hits on http://%s (GA4: %s, Heap: %s)\n",
		cfg.ListenAddress, collector.PathGA4, collector.PathHeap)
	fmt.Fprintf(cmd.OutOrStdout(), "Storing events in %s\n", db.Path())

	return server.ListenAndServe(ctx)
}
