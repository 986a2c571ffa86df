// Package log provides the slog setup shared by every objdetect command.
//
// Presigned POST credentials travel through the uploader as plain form
// fields (policy, signature, session token), and the credential issuer
// handles long-lived AWS keys. Any of those can end up in a debug line, so
// all loggers built here wrap their handler in a SecureHandler that masks:
//   - attributes whose key names credential material (policy, x-amz-signature,
//     x-amz-security-token, awsaccesskeyid, authorization, ...)
//   - values shaped like AWS access key ids, JWTs or bearer tokens
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("credentials fetched", "url", creds.URL, "x-amz-signature", sig)
//	// x-amz-signature=***REDACTED***
//
// The returned *slog.Logger also satisfies the leveled logger interface of
// hashicorp/go-retryablehttp, so the HTTP layer logs through the same handler.
package log
