package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/pagebeacon/internal/model"
	"github.com/nao1215/pagebeacon/internal/scenario"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version is embedded in the output when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables indented output with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion embeds the program version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONSummary wraps a summary with metadata.
type JSONSummary struct {
	Version string         `json:"version,omitempty"`
	Events  []string       `json:"events_by_frequency"`
	Summary *model.Summary `json:"summary"`
}

// JSONReplay wraps replay results with totals.
type JSONReplay struct {
	Version string             `json:"version,omitempty"`
	Totals  replayTotals       `json:"totals"`
	Results []*scenario.Result `json:"results"`
}

// Write implements Writer.
func (w *JSONWriter) Write(summary *model.Summary) (int, error) {
	return w.writeJSON(&JSONSummary{
		Version: w.version,
		Events:  summary.EventNames(),
		Summary: summary,
	})
}

// WriteReplay implements Writer.
func (w *JSONWriter) WriteReplay(results []*scenario.Result) (int, error) {
	return w.writeJSON(&JSONReplay{
		Version: w.version,
		Totals:  totals(results),
		Results: results,
	})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
