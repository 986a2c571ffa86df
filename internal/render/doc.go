// Package render presents batch progress: appended result fragments, an
// elapsed-time display and a border colour that follows the batch state.
//
// Sinks:
//   - TextSink prints one line per file for terminals
//   - Page builds a standalone HTML document
//   - Hub serves a Page live and pushes updates over websocket
//
// Stopwatch drives the timer text of any sink.
package render
