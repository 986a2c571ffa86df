// Package presign issues presigned S3 POST credentials.
//
// Server is the credential endpoint the uploader calls: every GET returns a
// fresh object key under the configured prefix together with the form
// fields S3 expects. Responses use the API Gateway proxy envelope, a JSON
// object whose body member is itself a JSON string, so the same handler
// works behind Lambda (HandleRequest) and as a plain HTTP server (Handler).
package presign
