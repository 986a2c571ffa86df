// Package database keeps a local SQLite history of upload batches.
//
// Every batch gets a row in batches and one row per file in outcomes.
// Outcomes are written as files finish, so an interrupted run still leaves
// the files it completed. The driver is modernc.org/sqlite, which needs no
// cgo, and the file lives in the xdg data directory by default.
package database
