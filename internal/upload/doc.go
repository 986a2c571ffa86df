// Package upload sends a file to the object store as a presigned POST
// multipart form.
package upload
