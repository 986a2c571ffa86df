package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// maxResponseSize bounds how much of a credentials response is read.
const maxResponseSize = 1 << 20

// Doer sends a request. *transport.Client satisfies it.
type Doer interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

// Fetcher obtains one presigned POST per call.
type Fetcher struct {
	client   Doer
	endpoint string
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher returns a Fetcher for the given endpoint.
func NewFetcher(client Doer, endpoint string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   client,
		endpoint: endpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a GET and returns fresh credentials. Nothing is cached: two
// calls yield two independent credential sets.
func (f *Fetcher) Fetch(ctx context.Context) (model.UploadCredentials, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return model.UploadCredentials{}, &model.FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.UploadCredentials{}, &model.FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.UploadCredentials{}, &model.FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.UploadCredentials{}, &model.FetchError{Err: fmt.Errorf("read response: %w", err)}
	}

	creds, err := Parse(body)
	if err != nil {
		return model.UploadCredentials{}, err
	}

	f.logger.Debug("fetched upload credentials",
		"url", creds.URL,
		"key", creds.ObjectKey(),
		"fields", len(creds.Fields),
	)
	return creds, nil
}

// Parse decodes a credentials response. The presigned POST may be the
// top-level object or sit in a "body" member, either as an object or as a
// JSON-encoded string (API gateway envelopes do the latter).
func Parse(body []byte) (model.UploadCredentials, error) {
	if !json.Valid(body) {
		return model.UploadCredentials{}, &model.FetchError{Err: errors.New("decode response: body is not JSON")}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return model.UploadCredentials{}, &model.MalformedResponseError{Source: "credentials", Reason: "response is not an object: " + err.Error()}
	}

	// A gateway envelope can carry a failing statusCode inside a 200 reply.
	if raw, ok := top["statusCode"]; ok {
		var status int
		if err := json.Unmarshal(raw, &status); err == nil && (status < 200 || status > 299) {
			return model.UploadCredentials{}, &model.FetchError{Status: status}
		}
	}

	payload := body
	if inner, ok := top["body"]; ok && !isEmpty(inner) {
		unwrapped, err := unwrapBody(inner)
		if err != nil {
			return model.UploadCredentials{}, err
		}
		payload = unwrapped
	}

	var creds model.UploadCredentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return model.UploadCredentials{}, &model.MalformedResponseError{Source: "credentials", Reason: err.Error()}
	}
	if creds.URL == "" {
		return model.UploadCredentials{}, &model.MalformedResponseError{Source: "credentials", Reason: "missing url"}
	}
	if creds.Fields == nil {
		return model.UploadCredentials{}, &model.MalformedResponseError{Source: "credentials", Reason: "missing fields"}
	}
	if creds.ObjectKey() == "" {
		return model.UploadCredentials{}, &model.MalformedResponseError{Source: "credentials", Reason: "missing key field"}
	}
	creds.Raw = json.RawMessage(payload)
	return creds, nil
}

// unwrapBody returns the JSON document held by a "body" member.
func unwrapBody(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, &model.MalformedResponseError{Source: "credentials", Reason: err.Error()}
	}
	if !json.Valid([]byte(s)) {
		return nil, &model.MalformedResponseError{Source: "credentials", Reason: "body is not JSON: " + truncate(s, 200)}
	}
	return []byte(s), nil
}

// isEmpty reports whether a member is null or an empty string, both of
// which mean "no envelope".
func isEmpty(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "null" || s == `""` || s == ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
