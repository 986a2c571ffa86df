package model

import "encoding/json"

// UploadCredentials is a presigned POST: the store URL plus the form fields
// that must accompany the file. A value is fetched for exactly one upload
// and never reused, because the policy it carries is bound to a single
// object key.
type UploadCredentials struct {
	// URL is the store endpoint the multipart form is posted to.
	URL string `json:"url"`

	// Fields are sent verbatim as form fields, in addition to the file.
	Fields map[string]string `json:"fields"`

	// Raw is the payload as received after unwrapping, kept for debugging.
	Raw json.RawMessage `json:"-"`
}

// ObjectKeyField is the form field that names the uploaded object.
const ObjectKeyField = "key"

// ObjectKey returns the key the store will assign to the upload.
func (c UploadCredentials) ObjectKey() string {
	return c.Fields[ObjectKeyField]
}
