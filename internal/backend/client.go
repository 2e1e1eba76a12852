// ABOUTME: Cookie-bearing HTTP client for the Posible backend
// ABOUTME: Builds tenant-scoped paths, classifies failures, and decodes JSON envelopes

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// Observer is notified after every backend request. status is 0 when the
// request failed before a response arrived.
type Observer interface {
	ObserveRequest(op string, status int, err error, elapsed time.Duration)
}

// Client talks to the Posible backend. It is safe for concurrent use; its
// configuration is fixed at construction.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer Observer
}

type options struct {
	httpClient *http.Client
	jar        http.CookieJar
	timeout    time.Duration
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient uses a copy of hc as the underlying client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithJar sets the cookie jar carrying the backend session.
func WithJar(jar http.CookieJar) Option {
	return func(o *options) { o.jar = jar }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers a request observer (metrics).
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// NewJar returns an in-memory cookie jar using the public suffix list.
func NewJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// New creates a Client for the backend at baseURL. A fresh in-memory jar is
// created unless one is supplied, so credentials ride on every request.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https scheme, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}

	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		copied := *o.httpClient
		hc = &copied
	}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}
	if o.jar != nil {
		hc.Jar = o.jar
	}
	if hc.Jar == nil {
		jar, err := NewJar()
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  strings.TrimRight(u.String(), "/"),
		http:     hc,
		logger:   logger.With("component", "backend"),
		observer: o.observer,
	}, nil
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the cookie jar carrying the backend session.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Envelope is the application-level outcome every backend payload carries.
type Envelope struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *Envelope) envelope() *Envelope { return e }

// Succeeded reports whether the payload explicitly carried "success": true.
func (e *Envelope) Succeeded() bool {
	return e.Success != nil && *e.Success
}

type enveloper interface {
	envelope() *Envelope
}

// successPolicy decides how the payload's success field is judged.
type successPolicy int

const (
	// requireSuccess fails unless success is present and true.
	requireSuccess successPolicy = iota
	// rejectExplicitFailure fails only when success is present and false.
	rejectExplicitFailure
)

// tenantPath joins path-escaped segments under prefix. Trailing empty
// segments are dropped; an empty segment followed by a non-empty one is
// kept so later segments never shift into its place.
func tenantPath(prefix string, segments ...string) string {
	for len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// doJSON sends body (JSON-encoded when non-nil) and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, out enveloper) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, reader, contentType, out, requireSuccess)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out enveloper, policy successPolicy) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, err, start)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.observe(op, resp.StatusCode, err, start)
		return &TransportError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	err = decodeResponse(op, resp.StatusCode, data, out, policy)
	c.observe(op, resp.StatusCode, err, start)
	c.logger.Debug("backend request", "op", op, "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return err
}

func decodeResponse(op string, status int, data []byte, out enveloper, policy successPolicy) error {
	if status < 200 || status > 299 {
		var env Envelope
		_ = json.Unmarshal(data, &env)
		return &StatusError{Op: op, StatusCode: status, Message: env.Error}
	}

	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}

	env := out.envelope()
	switch policy {
	case rejectExplicitFailure:
		if env.Success != nil && !*env.Success {
			return &APIError{Op: op, Message: env.Error}
		}
	default:
		if !env.Succeeded() {
			return &APIError{Op: op, Message: env.Error}
		}
	}
	return nil
}

func (c *Client) observe(op string, status int, err error, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, err, time.Since(start))
	}
}
