// Package report renders event summaries and replay results.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured output for other tools
//   - MarkdownWriter: documents with a mermaid chart of event names
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
