package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/observability"
)

// Rate limit response headers used by ADS and other Solr-fronted APIs.
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// PluginID labels errors and metrics.
	PluginID string

	// BaseURL is prepended to request paths.
	BaseURL string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// QuotaLimit is the assumed quota before the source reports one.
	QuotaLimit int

	// RetryAfterFallback is used for 429 responses without a Retry-After header.
	RetryAfterFallback time.Duration

	// Metrics records requests. May be nil.
	Metrics *observability.Metrics
}

// Request describes one call to a source API.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is JSON-encoded when set.
	Body any
	// Endpoint labels metrics. Defaults to the first path segment.
	Endpoint string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// HTTPClient is the HTTP collaborator shared by source plugins. It sets
// common headers, tracks the source's advertised quota, and maps error
// statuses to domain errors. It never retries: a 429 surfaces as a
// *domain.RateLimitError. It is safe for concurrent use.
type HTTPClient struct {
	client *resty.Client
	config HTTPClientConfig
	limits *RateLimitTracker
}

// NewHTTPClient creates a new HTTP client for one source.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "paperhub/1.0 (+https://github.com/helixir/paperhub)"
	}
	if cfg.QuotaLimit <= 0 {
		cfg.QuotaLimit = 1000
	}
	if cfg.RetryAfterFallback == 0 {
		cfg.RetryAfterFallback = time.Minute
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	return &HTTPClient{
		client: client,
		config: cfg,
		limits: NewRateLimitTracker(cfg.QuotaLimit),
	}
}

// RateLimitStatus returns the last-known quota.
func (c *HTTPClient) RateLimitStatus() domain.RateLimitStatus {
	return c.limits.Status()
}

// Get issues a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, query url.Values, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Headers: headers})
}

// PostJSON issues a POST request with a JSON body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers})
}

// Do executes a request. Status 404 yields an error wrapping
// domain.ErrNotFound, 401/403 one wrapping domain.ErrUnauthenticated, 429 a
// *domain.RateLimitError, and any other status >= 400 a
// *domain.ExternalAPIError.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = endpointLabel(req.Path)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.client.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.config.Metrics.RecordPluginRequestFailed(c.config.PluginID, endpoint, "network")
		return nil, domain.NewExternalAPIError(c.config.PluginID, 0, "request failed", fmt.Errorf("%s %s: %w", method, req.Path, err))
	}
	c.config.Metrics.RecordPluginRequest(c.config.PluginID, endpoint, time.Since(start).Seconds())

	c.limits.Update(resp.Header())

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header().Get(HeaderRetryAfter), c.config.RetryAfterFallback)
		c.limits.Exhaust(retryAfter)
		c.config.Metrics.RecordPluginRateLimited(c.config.PluginID)
		return nil, domain.NewRateLimitError(c.config.PluginID, retryAfter)
	case status == http.StatusNotFound:
		return nil, domain.NewNotFoundError("record", req.Path)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.config.Metrics.RecordPluginRequestFailed(c.config.PluginID, endpoint, "auth")
		return nil, domain.NewExternalAPIError(c.config.PluginID, status, snippet(resp.Body()), domain.ErrUnauthenticated)
	case status >= 400:
		errorType := "client_error"
		if status >= 500 {
			errorType = "server_error"
		}
		c.config.Metrics.RecordPluginRequestFailed(c.config.PluginID, endpoint, errorType)
		return nil, domain.NewExternalAPIError(c.config.PluginID, status, snippet(resp.Body()), nil)
	}

	return &Response{
		StatusCode: status,
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// endpointLabel returns the first path segment, which keeps metric
// cardinality bounded when paths embed record IDs.
func endpointLabel(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}

// snippet bounds error bodies kept in error messages.
func snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// parseRetryAfter parses a Retry-After value given in seconds or as an HTTP date.
func parseRetryAfter(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return fallback
	}
	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return fallback
}

// RateLimitTracker keeps the last quota a source reported through response
// headers. It is safe for concurrent use.
type RateLimitTracker struct {
	mu     sync.Mutex
	status domain.RateLimitStatus
	now    func() time.Time
}

// NewRateLimitTracker creates a tracker assuming a full quota of limit.
func NewRateLimitTracker(limit int) *RateLimitTracker {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimitTracker{
		status: domain.RateLimitStatus{Remaining: limit, Limit: limit},
		now:    time.Now,
	}
}

// Update applies X-RateLimit-* headers. Missing or malformed headers leave
// the corresponding field unchanged.
func (t *RateLimitTracker) Update(h http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, err := strconv.Atoi(h.Get(HeaderRateLimit)); err == nil && v > 0 {
		t.status.Limit = v
	}
	if v, err := strconv.Atoi(h.Get(HeaderRateRemaining)); err == nil {
		if v < 0 {
			v = 0
		}
		t.status.Remaining = v
	}
	if v, err := strconv.ParseInt(h.Get(HeaderRateReset), 10, 64); err == nil && v > 0 {
		t.status.ResetAt = time.Unix(v, 0)
	}
}

// Exhaust marks the quota as used up for retryAfter.
func (t *RateLimitTracker) Exhaust(retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Remaining = 0
	t.status.ResetAt = t.now().Add(retryAfter)
}

// Status returns the current view. RetryAfter is derived from ResetAt while
// the quota is exhausted; once ResetAt has passed the quota is assumed full.
func (t *RateLimitTracker) Status() domain.RateLimitStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s := t.status
	s.RetryAfter = 0
	if s.Remaining > 0 {
		return s
	}
	if !s.ResetAt.IsZero() && s.ResetAt.After(now) {
		s.RetryAfter = s.ResetAt.Sub(now)
		return s
	}
	if !s.ResetAt.IsZero() {
		t.status.Remaining = t.status.Limit
		s.Remaining = s.Limit
	}
	return s
}
