package model

import (
	"fmt"
	"html"
)

// FragmentKind distinguishes success and error entries.
type FragmentKind string

const (
	FragmentSuccess FragmentKind = "success"
	FragmentError   FragmentKind = "error"
)

// Fragment is one appended entry of the result area, in HTML for pages
// and as a single text line for terminals.
type Fragment struct {
	Kind     FragmentKind `json:"kind"`
	FileName string       `json:"file_name"`
	HTML     string       `json:"html"`
	Text     string       `json:"text"`
}

// SuccessFragment renders the detections for one file.
func SuccessFragment(fileName string, r *DetectionResult) Fragment {
	objects := r.ObjectsString()
	return Fragment{
		Kind:     FragmentSuccess,
		FileName: fileName,
		HTML: fmt.Sprintf(`<div class="detection-item"><p>Detections for %s:<br>S3 URL: %s<br>Objects: %s</p></div>`,
			html.EscapeString(fileName), html.EscapeString(r.S3URL), html.EscapeString(objects)),
		Text: fmt.Sprintf("Detections for %s: S3 URL: %s Objects: %s", fileName, r.S3URL, objects),
	}
}

// ErrorFragment renders a failed file. The message is err's text as is.
func ErrorFragment(fileName string, err error) Fragment {
	msg := err.Error()
	return Fragment{
		Kind:     FragmentError,
		FileName: fileName,
		HTML:     fmt.Sprintf("<p>Error uploading %s: %s</p>", html.EscapeString(fileName), html.EscapeString(msg)),
		Text:     fmt.Sprintf("Error uploading %s: %s", fileName, msg),
	}
}
