package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

const maxResponseSize = 4 << 20

// Doer sends a request. *transport.Client satisfies it.
type Doer interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

// Request is the body sent to the detection endpoint.
type Request struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	FileName string `json:"fileName"` //nolint:tagliatelle // wire name
}

// Detector asks the detection service to inspect uploaded objects.
type Detector struct {
	client   Doer
	endpoint string
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// NewDetector returns a Detector for endpoint.
func NewDetector(client Doer, endpoint string, opts ...Option) *Detector {
	d := &Detector{
		client:   client,
		endpoint: endpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect requests detection for bucket/key and returns the normalized result.
func (d *Detector) Detect(ctx context.Context, bucket, key, fileName string) (*model.DetectionResult, error) {
	payload, err := json.Marshal(Request{Bucket: bucket, Key: key, FileName: fileName})
	if err != nil {
		return nil, &model.DetectionError{Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, payload)
	if err != nil {
		return nil, &model.DetectionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &model.DetectionError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &model.DetectionError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.DetectionError{Status: resp.StatusCode, Body: string(body)}
	}

	p, err := Normalize(body)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("detection finished",
		"file", fileName,
		"key", key,
		"shape", p.Shape.String(),
		"objects", len(p.Result.Objects),
	)
	return &p.Result, nil
}
