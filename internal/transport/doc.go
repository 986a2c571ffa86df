// Package transport builds the HTTP client shared by the credential,
// upload and detection stages.
//
// The client is a hashicorp/go-retryablehttp client with retrying off by
// default, so every request is sent once unless the user asks otherwise.
// When retrying is on, non-2xx responses still reach the caller after the
// last attempt instead of being turned into a generic error. Optional
// settings:
//   - a SOCKS5 proxy (golang.org/x/net/proxy)
//   - a User-Agent and static headers such as an API gateway key
//   - a per-request timeout
package transport
