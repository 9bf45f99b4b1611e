package report

import (
	"io"

	"github.com/nao1215/pagebeacon/internal/model"
	"github.com/nao1215/pagebeacon/internal/scenario"
)

// Writer renders reports to a destination.
type Writer interface {
	// Write outputs an event summary.
	Write(summary *model.Summary) (int, error)

	// WriteReplay outputs the results of scenario replays.
	WriteReplay(results []*scenario.Result) (int, error)
}

// MultiWriter writes to several Writers in order, stopping at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements Writer.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteReplay implements Writer.
func (m *MultiWriter) WriteReplay(results []*scenario.Result) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteReplay(results)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// replayTotals sums replay results.
type replayTotals struct {
	Scenarios int `json:"scenarios"`
	Failed    int `json:"failed_scenarios"`
	Sent      int `json:"sent"`
	Dropped   int `json:"dropped"`
	Skipped   int `json:"skipped"`
}

func totals(results []*scenario.Result) replayTotals {
	var t replayTotals
	for _, r := range results {
		if r == nil {
			continue
		}
		t.Scenarios++
		if r.ErrorMessage != "" {
			t.Failed++
		}
		t.Sent += r.Sent
		t.Dropped += r.Failed
		t.Skipped += r.Skipped
	}
	return t
}
