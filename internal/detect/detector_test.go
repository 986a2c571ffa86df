package detect

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/transport"
)

const directResult = `{"s3_url":"s3://tuw-dic-ex3/images/a.jpg","objects":[{"label":"cat","accuracy":0.912}]}`

func TestNormalize_Shapes(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(directResult)
	require.NoError(t, err)

	want := model.DetectionResult{
		S3URL:   "s3://tuw-dic-ex3/images/a.jpg",
		Objects: []model.DetectedObject{{Label: "cat", Accuracy: 0.912}},
	}

	tests := []struct {
		name      string
		body      string
		wantShape Shape
	}{
		{name: "direct object", body: directResult, wantShape: ShapeDirect},
		{name: "encoded string", body: string(encoded), wantShape: ShapeEncodedString},
		{name: "nested string body", body: `{"statusCode":200,"body":` + string(encoded) + `}`, wantShape: ShapeNestedBody},
		{name: "nested object body", body: `{"body":` + directResult + `}`, wantShape: ShapeNestedBody},
		{name: "doubly nested body", body: `{"body":{"body":` + string(encoded) + `}}`, wantShape: ShapeNestedBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Normalize([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, p.Shape)
			assert.Equal(t, want, p.Result)
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	t.Parallel()

	t.Run("explicit error at top level", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize([]byte(`{"error":"Missing 'key' in the request body"}`))
		var detErr *model.DetectionError
		require.True(t, errors.As(err, &detErr))
		assert.Equal(t, "Missing 'key' in the request body", err.Error())
	})

	t.Run("explicit error inside nested body", func(t *testing.T) {
		t.Parallel()

		_, err := Normalize([]byte(`{"statusCode":500,"body":"{\"error\":\"model failed\"}"}`))
		var detErr *model.DetectionError
		require.True(t, errors.As(err, &detErr))
		assert.Equal(t, "model failed", detErr.Message)
	})

	t.Run("empty error member is ignored", func(t *testing.T) {
		t.Parallel()

		p, err := Normalize([]byte(`{"error":"","s3_url":"s3://b/k","objects":[]}`))
		require.NoError(t, err)
		assert.Equal(t, "s3://b/k", p.Result.S3URL)
	})

	malformedBodies := map[string]string{
		"not JSON":              `<html>`,
		"number":                `42`,
		"object without result": `{"statusCode":200}`,
		"encoded non-JSON":      `"oops"`,
		"too deep":              `{"body":{"body":{"body":{"body":{"body":{}}}}}}`,
		"bad objects type":      `{"s3_url":"s3://b/k","objects":"cat"}`,
	}
	for name, body := range malformedBodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Normalize([]byte(body))
			var malformed *model.MalformedResponseError
			require.True(t, errors.As(err, &malformed), "expected MalformedResponseError, got %v", err)
			assert.Equal(t, "detection", malformed.Source)
		})
	}

	t.Run("string accuracy is accepted", func(t *testing.T) {
		t.Parallel()

		p, err := Normalize([]byte(`{"s3_url":"s3://b/k","objects":[{"label":"dog","accuracy":"0.83333"}]}`))
		require.NoError(t, err)
		require.Len(t, p.Result.Objects, 1)
		assert.Equal(t, "0.833", model.FormatAccuracy(p.Result.Objects[0].Accuracy))
	})

	t.Run("missing objects yields empty list", func(t *testing.T) {
		t.Parallel()

		p, err := Normalize([]byte(`{"s3_url":"s3://b/k"}`))
		require.NoError(t, err)
		assert.NotNil(t, p.Result.Objects)
		assert.Empty(t, p.Result.Objects)
	})
}

func TestDetector_Detect(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	newDetector := func(t *testing.T, h http.HandlerFunc) *Detector {
		t.Helper()
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		client, err := transport.NewClient(transport.WithLogger(logger))
		require.NoError(t, err)
		return NewDetector(client, srv.URL, WithLogger(logger))
	}

	t.Run("sends bucket key and file name", func(t *testing.T) {
		t.Parallel()

		got := make(chan Request, 1)
		d := newDetector(t, func(w http.ResponseWriter, r *http.Request) {
			var req Request
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				got <- req
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, directResult)
		})

		res, err := d.Detect(context.Background(), "tuw-dic-ex3", "images/a.jpg", "A.jpg")
		require.NoError(t, err)
		assert.Equal(t, "s3://tuw-dic-ex3/images/a.jpg", res.S3URL)

		req := <-got
		assert.Equal(t, Request{Bucket: "tuw-dic-ex3", Key: "images/a.jpg", FileName: "A.jpg"}, req)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		t.Parallel()

		d := newDetector(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"message":"Internal server error"}`)
		})

		_, err := d.Detect(context.Background(), "b", "k", "f.jpg")
		var detErr *model.DetectionError
		require.True(t, errors.As(err, &detErr))
		assert.Equal(t, http.StatusBadGateway, detErr.Status)
		assert.Equal(t, `HTTP error! status: 502 response: {"message":"Internal server error"}`, err.Error())
	})

	t.Run("wire name of file name field", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(Request{Bucket: "b", Key: "k", FileName: "f"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"bucket":"b","key":"k","fileName":"f"}`, string(data))
	})
}
