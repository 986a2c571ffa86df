package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultCredentialsEndpoint issues one presigned POST per GET.
	DefaultCredentialsEndpoint = "https://8cjmfbdlwc.execute-api.us-east-1.amazonaws.com/prod"

	// DefaultDetectionEndpoint runs object detection on an uploaded key.
	DefaultDetectionEndpoint = "https://f3fh4ib1wd.execute-api.us-east-1.amazonaws.com/prod/detect"

	// DefaultBucket is the bucket the credential issuer signs for. The
	// detection request names it explicitly, so both sides must agree.
	DefaultBucket = "tuw-dic-ex3"

	// DefaultTimeout bounds each HTTP request (fetch, upload, detect).
	// Detection runs a model on the remote side and regularly takes seconds.
	DefaultTimeout = 60 * time.Second

	// DefaultConcurrency of 0 starts every file at once.
	DefaultConcurrency = 0

	// DefaultRetries of 0 sends each request exactly once.
	DefaultRetries = 0

	// DefaultMaxFileSize refuses files larger than 20MB before any request
	// is made. Presigned POST policies rarely allow more.
	DefaultMaxFileSize = 20 * 1000 * 1000

	// DefaultTimerInterval is how often the elapsed-time display refreshes.
	DefaultTimerInterval = 10 * time.Millisecond

	// DefaultUserAgent identifies objdetect in request logs.
	DefaultUserAgent = "objdetect/1.0 (+https://github.com/marcellszekrenyes/AWS-Remote-Object-Detector)"

	// DefaultRegion is used for DynamoDB export and the credential issuer.
	DefaultRegion = "us-east-1"

	// DefaultKeyPrefix is where the credential issuer places uploads.
	DefaultKeyPrefix = "images/"

	// DefaultPresignExpiry matches the lifetime the issuer grants a policy.
	DefaultPresignExpiry = time.Hour

	// DefaultServeAddress is the credential issuer's listen address.
	DefaultServeAddress = ":8080"

	// AppName is used for XDG directory paths.
	AppName = "objdetect"
)

// Config holds every option for an upload batch. It is populated from
// defaults, then the config file, then CLI flags, and passed down
// explicitly.
type Config struct {
	// CredentialsEndpoint answers GET with {url, fields} (optionally wrapped
	// in a "body" member).
	CredentialsEndpoint string

	// DetectionEndpoint accepts POST {bucket, key, fileName}.
	DetectionEndpoint string

	// Bucket is sent with every detection request.
	Bucket string

	// Timeout applies to each HTTP request individually.
	Timeout time.Duration

	// Concurrency caps how many files are in flight. 0 means no cap.
	Concurrency int

	// Retries is the number of extra attempts for transport errors and
	// 5xx/429 responses. 0 keeps the single-attempt behaviour.
	Retries int

	// ProxyAddress routes all requests through a SOCKS5 proxy (host:port).
	ProxyAddress string

	// UserAgent is sent with every request.
	UserAgent string

	// CredentialsHeaders and DetectionHeaders are extra request headers,
	// usually an API gateway key.
	CredentialsHeaders map[string]string
	DetectionHeaders   map[string]string

	// MaxFileSize in bytes. Larger files are skipped before upload.
	MaxFileSize int64

	// Files holds paths or doublestar patterns selecting the images.
	Files []string

	// Verbose switches logging to Debug.
	Verbose bool

	// LogJSON selects the JSON log handler.
	LogJSON bool

	// ConfigFilePath overrides config file discovery.
	ConfigFilePath string

	// JSONReport and MarkdownReport choose the batch report format.
	// They are mutually exclusive; neither means the plain text summary.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the batch report instead of stdout.
	ReportFile string

	// HTMLFile receives the rendered result page.
	HTMLFile string

	// LiveAddress serves the live result page while the batch runs.
	LiveAddress string

	// MetricsFile receives stage metrics in Prometheus text format.
	MetricsFile string

	// DynamoDBTable enables export of every detection to the table.
	DynamoDBTable string

	// Region is the AWS region for DynamoDB export.
	Region string

	// DBDir holds the SQLite batch history.
	DBDir string

	// SaveToDB records every batch in the history database.
	SaveToDB bool

	// TimerInterval is the refresh rate of the elapsed-time display.
	TimerInterval time.Duration
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		CredentialsEndpoint: DefaultCredentialsEndpoint,
		DetectionEndpoint:   DefaultDetectionEndpoint,
		Bucket:              DefaultBucket,
		Timeout:             DefaultTimeout,
		Concurrency:         DefaultConcurrency,
		Retries:             DefaultRetries,
		UserAgent:           DefaultUserAgent,
		MaxFileSize:         DefaultMaxFileSize,
		Region:              DefaultRegion,
		DBDir:               XDGDataDir(),
		SaveToDB:            true,
		TimerInterval:       DefaultTimerInterval,
	}
}

// ApplyFile overlays values set in the config file. Empty values keep the
// current setting, so file values never erase defaults.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.Credentials.URL != "" {
		c.CredentialsEndpoint = f.Credentials.URL
	}
	if f.Detection.URL != "" {
		c.DetectionEndpoint = f.Detection.URL
	}
	if f.Bucket != "" {
		c.Bucket = f.Bucket
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.Concurrency > 0 {
		c.Concurrency = f.Concurrency
	}
	if f.Retries > 0 {
		c.Retries = f.Retries
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Export.DynamoDBTable != "" {
		c.DynamoDBTable = f.Export.DynamoDBTable
	}
	if f.Export.Region != "" {
		c.Region = f.Export.Region
	}
	c.CredentialsHeaders = f.HeadersFor(ServiceCredentials)
	c.DetectionHeaders = f.HeadersFor(ServiceDetection)
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/objdetect.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/objdetect.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in c.
func (c *Config) Validate() error {
	if len(c.Files) == 0 {
		return ErrNoFiles
	}
	if c.CredentialsEndpoint == "" || c.DetectionEndpoint == "" {
		return ErrMissingEndpoint
	}
	if !isHTTPURL(c.CredentialsEndpoint) || !isHTTPURL(c.DetectionEndpoint) {
		return ErrInvalidEndpoint
	}
	if c.Bucket == "" {
		return ErrMissingBucket
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
