package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// FileField is the form field carrying the file. S3 ignores every field
// after it, so it is always written last.
const FileField = "file"

// maxErrorBody bounds how much of a store error document is kept.
const maxErrorBody = 64 << 10

// Doer sends a request. *transport.Client satisfies it.
type Doer interface {
	Do(req *retryablehttp.Request) (*http.Response, error)
}

// Uploader posts files to the store with presigned credentials.
type Uploader struct {
	client Doer
	logger *slog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = l
	}
}

// NewUploader returns an Uploader sending through client.
func NewUploader(client Doer, opts ...Option) *Uploader {
	u := &Uploader{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends file with creds and returns the object key the store
// assigned. The credentials must not be used again afterwards.
func (u *Uploader) Upload(ctx context.Context, file model.FileHandle, creds model.UploadCredentials) (string, error) {
	body, contentType, err := EncodeForm(file, creds.Fields)
	if err != nil {
		return "", &model.UploadError{Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, creds.URL, body)
	if err != nil {
		return "", &model.UploadError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &model.UploadError{Err: err}
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &model.UploadError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.UploadError{Status: resp.StatusCode, Body: string(text)}
	}

	key := creds.ObjectKey()
	u.logger.Debug("uploaded file",
		"file", file.Name,
		"key", key,
		"size", file.Size,
		"status", resp.StatusCode,
	)
	return key, nil
}

// EncodeForm builds the multipart body: every credential field verbatim,
// in name order, then the file part.
func EncodeForm(file model.FileHandle, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	part, err := w.CreateFormFile(FileField, file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
