// Package export copies detection results to external stores.
//
// DynamoExporter writes one item per successful file to a DynamoDB table,
// using the item layout of the detection service: "S3 URL" and a JSON
// encoded "Detections" list, extended with the local file name, object key
// and timing. It is meant to run as a batch outcome hook.
package export
