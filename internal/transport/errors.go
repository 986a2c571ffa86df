package transport

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrInvalidRetries is returned for a negative retry count.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")
)
