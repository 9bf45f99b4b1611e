package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pagebeacon/internal/model"
	"github.com/nao1215/pagebeacon/internal/scenario"
)

// timeLayout is used for every timestamp in text reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// maxSessionRows caps the session table.
const maxSessionRows = 50

// MarkdownWriter outputs reports in Markdown format using
// github.com/nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Tracking Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", summary.GeneratedAt.Format(timeLayout)},
			{"Events", strconv.Itoa(summary.TotalEvents)},
			{"Clients", strconv.Itoa(summary.Clients)},
			{"Sessions", strconv.Itoa(len(summary.Sessions))},
			{"Engaged Time", strconv.Itoa(summary.EngagementSeconds) + "s"},
		},
	})
	md.PlainText("")

	w.writeEvents(md, summary)
	w.writeSessions(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeEvents(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Events")
	md.PlainText("")

	names := summary.EventNames()
	if len(names) == 0 {
		md.Note("No events collected yet.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{"`" + name + "`", strconv.Itoa(summary.EventCounts[name])}
	}
	md.Table(markdown.TableSet{Header: []string{"Event", "Count"}, Rows: rows})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Event Distribution"),
		piechart.WithShowData(true),
	)
	for _, name := range names {
		chart.LabelAndIntValue(name, uint64(summary.EventCounts[name])) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeSessions(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Sessions")
	md.PlainText("")

	if len(summary.Sessions) == 0 {
		md.PlainText("No sessions recorded.")
		md.PlainText("")
		return
	}

	sessions := summary.Sessions
	if len(sessions) > maxSessionRows {
		md.Importantf("Showing the first %d of %d sessions.", maxSessionRows, len(sessions))
		md.PlainText("")
		sessions = sessions[:maxSessionRows]
	}

	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		rows[i] = []string{
			"`" + s.SessionID + "`",
			string(s.Provider),
			strconv.Itoa(s.Events),
			strconv.Itoa(s.EngagementSeconds) + "s",
			s.FirstSeen.Format(timeLayout),
			truncateString(strings.Join(s.Pages, ", "), 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Session", "Provider", "Events", "Engaged", "First Seen", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteReplay implements Writer.
func (w *MarkdownWriter) WriteReplay(results []*scenario.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)
	t := totals(results)

	md.H1("Replay Results")
	md.PlainText("")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		status := "ok"
		if r.ErrorMessage != "" {
			status = "error: " + r.ErrorMessage
		}
		rows = append(rows, []string{
			r.Name,
			strconv.Itoa(r.PageLoads),
			strconv.Itoa(r.Sent),
			strconv.Itoa(r.Failed),
			r.Elapsed.String(),
			truncateString(status, 60),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Scenario", "Page Loads", "Sent", "Dropped", "Simulated", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case t.Failed > 0:
		md.Warningf("%d of %d scenario(s) failed.", t.Failed, t.Scenarios)
	case t.Dropped > 0:
		md.Importantf("%d payload(s) could not be dispatched by any transport tier.", t.Dropped)
	default:
		md.Tip("All scenarios replayed and every payload was dispatched.")
	}
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagebeacon](https://github.com/nao1215/pagebeacon)*")
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
