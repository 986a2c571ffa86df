package config

import "errors"

// Configuration validation errors returned by Config.Validate. Callers
// match them with errors.Is.
var (
	// ErrNoFiles is returned when no file path or pattern was given.
	ErrNoFiles = errors.New("no files specified: provide at least one path or glob pattern")

	// ErrMissingEndpoint is returned when the credentials or detection
	// endpoint is empty.
	ErrMissingEndpoint = errors.New("missing endpoint: both credentials and detection endpoints are required")

	// ErrInvalidEndpoint is returned when an endpoint is not an absolute
	// http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http or https URL")

	// ErrMissingBucket is returned when the bucket name is empty.
	ErrMissingBucket = errors.New("missing bucket name")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned for a negative concurrency cap.
	// Use 0 for no cap.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be zero (unbounded) or positive")

	// ErrInvalidRetries is returned for a negative retry count.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidMaxFileSize is returned when the size limit is not positive.
	ErrInvalidMaxFileSize = errors.New("invalid max file size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
