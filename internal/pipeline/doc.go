// Package pipeline moves files through credentials, upload and detection.
//
// A Pipeline runs its Steps in order on one Job and stops at the first
// failing step, recording which stage failed. BatchProcessor runs one fresh
// Pipeline per file concurrently, appends each file's fragment to a render
// Sink as soon as that file finishes, and drives the batch state and
// stopwatch around the whole run.
//
// Files share nothing: each job fetches its own credentials, and a failure
// in one job never cancels or alters another.
package pipeline
