// Package credentials fetches presigned POST credentials, one set per file.
package credentials
