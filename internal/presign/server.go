package presign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultPrefix is where uploaded objects are placed.
	DefaultPrefix = "images/"

	// DefaultExpiry is how long a presigned POST stays valid.
	DefaultExpiry = time.Hour

	// keyExtension is appended to every generated key.
	keyExtension = ".jpg"
)

// ErrMissingBucket is returned when no bucket is configured.
var ErrMissingBucket = errors.New("bucket is required")

// PostPresigner signs S3 POST policies. *s3.PresignClient satisfies it.
type PostPresigner interface {
	PresignPostObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignPostOptions)) (*s3.PresignedPostRequest, error)
}

// Credentials is the body handed to uploaders.
type Credentials struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Server issues presigned POST credentials.
type Server struct {
	presigner PostPresigner
	bucket    string
	prefix    string
	expires   time.Duration
	newKey    func() string
	logger    *slog.Logger

	registry *prometheus.Registry
	issued   *prometheus.CounterVec
	latency  prometheus.Histogram
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

// WithExpiry sets the presigned POST lifetime.
func WithExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.expires = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithKeyGenerator replaces the random key suffix generator.
func WithKeyGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newKey = fn
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewServer returns a Server signing uploads into bucket.
func NewServer(presigner PostPresigner, bucket string, opts ...Option) (*Server, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}

	s := &Server{
		presigner: presigner,
		bucket:    bucket,
		prefix:    DefaultPrefix,
		expires:   DefaultExpiry,
		newKey:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.expires <= 0 {
		s.expires = DefaultExpiry
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	factory := promauto.With(s.registry)
	s.issued = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "objdetect",
		Subsystem: "presign",
		Name:      "requests_total",
		Help:      "Presigned POST requests, by result.",
	}, []string{"result"})
	s.latency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "objdetect",
		Subsystem: "presign",
		Name:      "duration_seconds",
		Help:      "Time spent signing a POST policy.",
		Buckets:   prometheus.DefBuckets,
	})

	return s, nil
}

// NewS3Presigner loads the default AWS configuration and returns a presign
// client for region.
func NewS3Presigner(ctx context.Context, region string) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewPresignClient(s3.NewFromConfig(cfg)), nil
}

// Key returns a fresh object key.
func (s *Server) Key() string {
	return s.prefix + s.newKey() + keyExtension
}

// Issue signs a POST for a fresh key.
func (s *Server) Issue(ctx context.Context) (*Credentials, error) {
	key := s.Key()
	conditions := []interface{}{
		map[string]string{"bucket": s.bucket},
		[]interface{}{"starts-with", "$key", s.prefix},
	}

	started := time.Now()
	req, err := s.presigner.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = s.expires
		o.Conditions = conditions
	})
	s.latency.Observe(time.Since(started).Seconds())
	if err != nil {
		s.issued.WithLabelValues("failure").Inc()
		return nil, err
	}
	s.issued.WithLabelValues("success").Inc()

	fields := make(map[string]string, len(req.Values)+1)
	for k, v := range req.Values {
		fields[k] = v
	}
	// The uploader reads the object key from the fields.
	if _, ok := fields["key"]; !ok {
		fields["key"] = key
	}

	s.logger.Debug("issued presigned post", "key", key, "expires", s.expires)
	return &Credentials{URL: req.URL, Fields: fields}, nil
}

// corsHeaders are sent on every response.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

// HandleRequest is the Lambda proxy entry point.
func (s *Server) HandleRequest(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return s.envelope(ctx), nil
}

func (s *Server) envelope(ctx context.Context) events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(corsHeaders)+1)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"

	creds, err := s.Issue(ctx)
	if err != nil {
		s.logger.Error("failed to presign post", "error", err)
		body, _ := json.Marshal("Error generating pre-signed URL: " + err.Error()) //nolint:errchkjson // string never fails
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       string(body),
		}
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `"Error generating pre-signed URL: encode response"`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}
}

// Handler returns the HTTP routes: GET / issues credentials, /healthz
// reports liveness and /metrics exposes Prometheus metrics.
//
// The envelope is always sent with HTTP 200, as API Gateway does for a
// non-proxy integration; callers read statusCode from the envelope.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", s.serveCredentials)
	r.Options("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) serveCredentials(w http.ResponseWriter, r *http.Request) {
	resp := s.envelope(r.Context())

	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(data, '\n'))
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves Handler on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("credential server listening", "addr", addr, "bucket", s.bucket, "prefix", s.prefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
