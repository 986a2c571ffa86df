package model

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step where a file failed.
type Stage string

const (
	StageCredentials Stage = "credentials"
	StageUpload      Stage = "upload"
	StageDetect      Stage = "detect"
)

// FetchError reports a failed credential request. With a non-zero Status
// the message is the one shown to users: "HTTP error! status: 500".
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP error! status: %d", e.Status)
	}
	return fmt.Sprintf("fetch upload credentials: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response that parsed but did not have
// the expected shape.
type MalformedResponseError struct {
	// Source is "credentials" or "detection".
	Source string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Source, e.Reason)
}

// UploadError reports a non-2xx answer from the object store. Body holds
// the store's error document.
type UploadError struct {
	Status int
	Body   string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upload to store: %v", e.Err)
	}
	return fmt.Sprintf("HTTP error! status: %d response: %s", e.Status, e.Body)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DetectionError reports a failed detection call: a transport failure, a
// non-2xx status, or an explicit error member in the response.
type DetectionError struct {
	Status  int
	Body    string
	Message string
	Err     error
}

func (e *DetectionError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("HTTP error! status: %d response: %s", e.Status, e.Body)
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("detection request: %v", e.Err)
	}
}

func (e *DetectionError) Unwrap() error { return e.Err }

// StageOf maps an error to the stage that produced it. Errors not created
// by a stage yield "".
func StageOf(err error) Stage {
	var (
		fetchErr  *FetchError
		uploadErr *UploadError
		detectErr *DetectionError
		malformed *MalformedResponseError
	)
	switch {
	case errors.As(err, &fetchErr):
		return StageCredentials
	case errors.As(err, &uploadErr):
		return StageUpload
	case errors.As(err, &detectErr):
		return StageDetect
	case errors.As(err, &malformed):
		if malformed.Source == "detection" {
			return StageDetect
		}
		return StageCredentials
	default:
		return ""
	}
}
