package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/proxy"
)

// Retry backoff bounds. Only used when retries are enabled.
const (
	retryWaitMin = 200 * time.Millisecond
	retryWaitMax = 5 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries enables up to n extra attempts for transport errors, 429 and
// 5xx responses. 0 disables retrying.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeaders adds static headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		c.headers = h
	}
}

// WithLogger sets the logger used for request and retry logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBaseTransport replaces the underlying transport, e.g. with an
// httptest server's. Proxy settings are ignored when set.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// Client builds the HTTP clients used by the upload stages.
type Client struct {
	timeout      time.Duration
	retries      int
	proxyAddress string
	userAgent    string
	headers      map[string]string
	logger       *slog.Logger
	base         http.RoundTripper

	http *retryablehttp.Client
}

// NewClient validates the options and assembles the retrying client.
// It does not contact the proxy.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout: 60 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.retries < 0 {
		return nil, ErrInvalidRetries
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	base := c.base
	if base == nil {
		var err error
		base, err = c.newTransport()
		if err != nil {
			return nil, err
		}
	}

	if c.userAgent != "" || len(c.headers) > 0 {
		base = &headerInjectingTransport{
			base:      base,
			userAgent: c.userAgent,
			headers:   c.headers,
		}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: base,
		Timeout:   c.timeout,
	}
	rc.Logger = c.logger
	rc.RetryMax = c.retries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	// Hand non-2xx responses back to the caller after the last attempt so
	// each stage can report the status and body itself.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.http = rc
	return c, nil
}

func (c *Client) newTransport() (http.RoundTripper, error) {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	if c.proxyAddress == "" {
		return t, nil
	}

	if !isValidProxyAddress(c.proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}
	dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	t.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
	} else {
		t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return t, nil
}

// Do sends req through the retrying client.
func (c *Client) Do(req *retryablehttp.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Retryable exposes the underlying retryablehttp client.
func (c *Client) Retryable() *retryablehttp.Client {
	return c.http
}

// StandardClient returns a plain *http.Client backed by the retry logic.
func (c *Client) StandardClient() *http.Client {
	return c.http.StandardClient()
}

// ProxyAddress returns the configured SOCKS5 proxy, or "".
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport sets static headers on every outgoing request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
