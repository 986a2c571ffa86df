// Package report writes batch reports for people and tools.
//
// Writers:
//   - SimpleWriter: plain text summary for the terminal
//   - JSONWriter: the full BatchReport, optionally wrapped with a summary
//   - MarkdownWriter: tables, a label pie chart and an alert per batch
//
// Writers share the Writer interface and can be combined with MultiWriter.
package report
