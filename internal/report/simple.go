package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/pagebeacon/internal/model"
	"github.com/nao1215/pagebeacon/internal/scenario"
)

// SimpleWriter outputs plain text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every session and its pages.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables per-session detail.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "TRACKING SUMMARY")
	fmt.Fprintf(&sb, "Generated:     %s\n", summary.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Events:        %d\n", summary.TotalEvents)
	fmt.Fprintf(&sb, "Clients:       %d\n", summary.Clients)
	fmt.Fprintf(&sb, "Sessions:      %d\n", len(summary.Sessions))
	fmt.Fprintf(&sb, "Engaged time:  %ds\n\n", summary.EngagementSeconds)

	writeSection(&sb, "EVENTS")
	names := summary.EventNames()
	if len(names) == 0 {
		sb.WriteString("  No events collected\n")
	}
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-24s %d\n", name, summary.EventCounts[name])
	}
	sb.WriteString("\n")

	if w.verbose && len(summary.Sessions) > 0 {
		writeSection(&sb, "SESSIONS")
		for _, s := range summary.Sessions {
			fmt.Fprintf(&sb, "  [%s] %s client=%s events=%d engaged=%ds\n",
				s.Provider, s.SessionID, s.ClientID, s.Events, s.EngagementSeconds)
			for _, p := range s.Pages {
				fmt.Fprintf(&sb, "    - %s\n", p)
			}
		}
		sb.WriteString("\n")
	}

	writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteReplay implements Writer.
func (w *SimpleWriter) WriteReplay(results []*scenario.Result) (int, error) {
	var sb strings.Builder
	t := totals(results)

	writeBanner(&sb, "REPLAY RESULTS")
	for _, r := range results {
		if r == nil {
			continue
		}
		mark := "+"
		if r.ErrorMessage != "" {
			mark = "!"
		}
		fmt.Fprintf(&sb, "  [%s] %-24s loads=%d sent=%d dropped=%d skipped=%d simulated=%s\n",
			mark, r.Name, r.PageLoads, r.Sent, r.Failed, r.Skipped, r.Elapsed)
		if r.ErrorMessage != "" {
			fmt.Fprintf(&sb, "      error: %s\n", r.ErrorMessage)
		}
		if w.verbose {
			for _, step := range r.Steps {
				fmt.Fprintf(&sb, "      - %s\n", step)
			}
		}
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "TOTAL: %d scenario(s), %d failed, %d sent, %d dropped\n\n",
		t.Scenarios, t.Failed, t.Sent, t.Dropped)

	writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", max(0, (70-len(title))/2)))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pagebeacon\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
