package model

import (
	"strconv"
	"strings"
)

// DetectionResult is what the detection service reports for one object.
type DetectionResult struct {
	// S3URL locates the inspected object, e.g. s3://bucket/images/x.jpg.
	S3URL string `json:"s3_url" mapstructure:"s3_url"` //nolint:tagliatelle // wire name

	// Objects are the detections above the service's confidence threshold.
	Objects []DetectedObject `json:"objects" mapstructure:"objects"`
}

// DetectedObject is one labelled detection.
type DetectedObject struct {
	Label    string  `json:"label" mapstructure:"label"`
	Accuracy float64 `json:"accuracy" mapstructure:"accuracy"`
}

// FormatAccuracy renders a confidence with exactly three decimals.
func FormatAccuracy(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ObjectsString renders the object list as "[label: cat, accuracy: 0.912, ...]".
func (r DetectionResult) ObjectsString() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, o := range r.Objects {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("label: ")
		sb.WriteString(o.Label)
		sb.WriteString(", accuracy: ")
		sb.WriteString(FormatAccuracy(o.Accuracy))
	}
	sb.WriteByte(']')
	return sb.String()
}
