package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagebeacon.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagebeacon",
		Short: "Replay, collect and summarize client-side analytics hits",
		Long: `pagebeacon drives a client-side analytics tracker through scripted page
visits and records the hits it produces.

The tracker keeps a persistent client id and a per-tab session, measures
engaged time, reports scroll depth once per page, and classifies clicks
on outbound and download links. Hits are encoded in the GA4 or Heap wire
format and delivered with beacon, request or fetch semantics.

Use "collect" to run a local collector, "replay" to send scenario traffic
to it (or to a real endpoint), and "report" to summarize stored events.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .pagebeacon in current, XDG config or home directory)")

	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewReplayCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
