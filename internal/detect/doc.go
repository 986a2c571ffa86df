// Package detect calls the remote detection service for an uploaded object
// and normalizes its response.
//
// Depending on how the service is deployed behind its gateway, the same
// result arrives in one of three shapes:
//
//	{"s3_url": "...", "objects": [...]}                  direct
//	"{\"s3_url\": \"...\", \"objects\": [...]}"          encoded string
//	{"statusCode": 200, "body": "{\"s3_url\": ...}"}     nested body
//
// Normalize accepts all three, including nestings of them, and reports
// which one it saw.
package detect
