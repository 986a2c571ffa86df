// Package model defines the data shared by every objdetect package:
//   - UploadCredentials: a single-use presigned POST
//   - FileHandle: a loaded local image
//   - DetectionResult: labelled detections for one uploaded object
//   - Fragment and BatchState: what the result area shows
//   - Outcome and BatchReport: the record of a batch run
//   - FetchError, UploadError, DetectionError, MalformedResponseError: stage failures
//
// Keeping these in one package lets the stages, the renderers, the
// history database and the report writers share them without import cycles.
package model
