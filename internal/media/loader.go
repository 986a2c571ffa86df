package media

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"golang.org/x/crypto/sha3"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

var (
	// ErrFileTooLarge is returned for files over the loader's limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNotRegular is returned for directories and other non-regular files.
	ErrNotRegular = errors.New("not a regular file")
)

// ParseSize reads a human size such as "20MB" or "512k". Units are decimal.
func ParseSize(s string) (int64, error) {
	n, err := units.FromHumanSize(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	return n, nil
}

// FormatSize renders n bytes for logs and reports, e.g. "1.5MB".
func FormatSize(n int64) string {
	return units.HumanSizeWithPrecision(float64(n), 3)
}

// Loader reads selected files into memory.
type Loader struct {
	maxSize int64
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxSize sets the size limit in bytes. Zero or less disables it.
func WithMaxSize(n int64) LoaderOption {
	return func(l *Loader) {
		l.maxSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader returns a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Load reads one file.
func (l *Loader) Load(path string) (model.FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.FileHandle{}, err
	}
	if !info.Mode().IsRegular() {
		return model.FileHandle{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if l.maxSize > 0 && info.Size() > l.maxSize {
		return model.FileHandle{}, fmt.Errorf("%s is %s, limit %s: %w",
			path, FormatSize(info.Size()), FormatSize(l.maxSize), ErrFileTooLarge)
	}

	content, err := os.ReadFile(path) //nolint:gosec // path chosen by the user
	if err != nil {
		return model.FileHandle{}, err
	}

	digest := sha3.Sum256(content)
	fh := model.FileHandle{
		Name:     filepath.Base(path),
		Path:     path,
		Content:  content,
		Size:     int64(len(content)),
		Digest:   hex.EncodeToString(digest[:]),
		Metadata: ExtractMetadata(content),
	}

	l.logger.Debug("loaded file", "path", path, "size", FormatSize(fh.Size), "digest", fh.Digest)
	return fh, nil
}

// Skipped is a file that could not be loaded.
type Skipped struct {
	Path string
	Err  error
}

// LoadAll loads every path. Files that fail to load are returned as
// Skipped and do not stop the others.
func (l *Loader) LoadAll(paths []string) ([]model.FileHandle, []Skipped) {
	files := make([]model.FileHandle, 0, len(paths))
	var skipped []Skipped

	for _, p := range paths {
		fh, err := l.Load(p)
		if err != nil {
			l.logger.Warn("skipping file", "path", p, "error", err)
			skipped = append(skipped, Skipped{Path: p, Err: err})
			continue
		}
		files = append(files, fh)
	}
	return files, skipped
}
