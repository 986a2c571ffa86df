package detect

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// maxUnwrap bounds how many envelopes are peeled before giving up.
const maxUnwrap = 4

// Shape identifies how a detection response wrapped its result.
type Shape int

const (
	// ShapeDirect is a JSON object that is the result itself.
	ShapeDirect Shape = iota + 1
	// ShapeEncodedString is a JSON string holding the encoded result.
	ShapeEncodedString
	// ShapeNestedBody is an object whose "body" member holds the result,
	// either encoded as a string or as an object.
	ShapeNestedBody
)

// String returns the shape name used in logs.
func (s Shape) String() string {
	switch s {
	case ShapeDirect:
		return "direct"
	case ShapeEncodedString:
		return "encoded-string"
	case ShapeNestedBody:
		return "nested-body"
	default:
		return "unknown"
	}
}

// Payload is a normalized detection response.
type Payload struct {
	// Shape is the outermost wrapping that was found.
	Shape  Shape
	Result model.DetectionResult
}

// Normalize resolves a detection response body to a result. Wrappings are
// tried in a fixed order at each level: an explicit "error" member wins,
// then a result object, then an encoded string, then a "body" member.
func Normalize(body []byte) (Payload, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return Payload{}, malformed("response is not JSON: %v", err)
	}

	var shape Shape
	for range maxUnwrap {
		switch t := v.(type) {
		case string:
			if shape == 0 {
				shape = ShapeEncodedString
			}
			var inner any
			if err := json.Unmarshal([]byte(t), &inner); err != nil {
				return Payload{}, malformed("encoded body is not JSON: %v", err)
			}
			v = inner

		case map[string]any:
			if msg, ok := errorMessage(t); ok {
				return Payload{}, &model.DetectionError{Message: msg}
			}
			if isResult(t) {
				if shape == 0 {
					shape = ShapeDirect
				}
				res, err := decodeResult(t)
				if err != nil {
					return Payload{}, err
				}
				return Payload{Shape: shape, Result: res}, nil
			}
			inner, ok := t["body"]
			if !ok || inner == nil {
				return Payload{}, malformed("no detection result in response")
			}
			if shape == 0 {
				shape = ShapeNestedBody
			}
			v = inner

		default:
			return Payload{}, malformed("unexpected JSON value of type %T", v)
		}
	}
	return Payload{}, malformed("result nested more than %d levels deep", maxUnwrap)
}

// errorMessage returns a non-empty "error" member.
func errorMessage(m map[string]any) (string, bool) {
	raw, ok := m["error"]
	if !ok || raw == nil {
		return "", false
	}
	switch e := raw.(type) {
	case string:
		return e, e != ""
	case bool:
		if !e {
			return "", false
		}
		return "detection failed", true
	default:
		return fmt.Sprint(e), true
	}
}

func isResult(m map[string]any) bool {
	_, hasURL := m["s3_url"]
	_, hasObjects := m["objects"]
	return hasURL || hasObjects
}

func decodeResult(m map[string]any) (model.DetectionResult, error) {
	var res model.DetectionResult
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &res,
		TagName:          "mapstructure",
	})
	if err != nil {
		return res, err
	}
	if err := dec.Decode(m); err != nil {
		return res, malformed("decode result: %v", err)
	}
	if res.Objects == nil {
		res.Objects = []model.DetectedObject{}
	}
	return res, nil
}

func malformed(format string, args ...any) error {
	return &model.MalformedResponseError{Source: "detection", Reason: fmt.Sprintf(format, args...)}
}
