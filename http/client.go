// Package http provides the HTTP client used by the platform and AI adapters,
// with per-host rate limiting, a circuit breaker and typed errors.
//
// The client makes exactly one attempt per call. Retries belong to the caller
// (the upload pipeline wraps every external call in internal/retry), and the
// errors returned here carry a Transient() classification for that purpose.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client wraps an HTTP client with rate limit handling and a circuit breaker.
type Client struct {
	base           *http.Client
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests
	Timeout time.Duration

	// User agent for HTTP requests
	UserAgent string

	// Rate limiter configuration
	RateLimiter RateLimiterConfig

	// Circuit breaker configuration
	CircuitBreaker CircuitBreakerConfig

	// Connection pool configuration
	Transport TransportConfig
}

// TransportConfig configures the HTTP transport (connection pooling).
type TransportConfig struct {
	// MaxIdleConns is the maximum number of idle connections across all hosts.
	// Default: 10
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	// Default: 4
	MaxIdleConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle connection can remain open.
	// Default: 90 seconds
	IdleConnTimeout time.Duration

	// ForceAttemptHTTP2 forces HTTP/2 for connections to servers that don't explicitly support it.
	// Default: true
	ForceAttemptHTTP2 bool
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	cbConfig := DefaultCircuitBreakerConfig()
	cbConfig.IsTransientError = IsTransientHTTPError
	return &Config{
		Timeout:        2 * time.Minute,
		UserAgent:      "reelsync/1.0",
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: cbConfig,
		Transport:      DefaultTransportConfig(),
	}
}

// DefaultTransportConfig returns sensible defaults for HTTP transport configuration.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// New creates a new HTTP client with the given configuration.
// Every client owns its transport, so two clients never share connections.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   cfg.Transport.ForceAttemptHTTP2,
	}

	return &Client{
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

// Response represents an HTTP response with status code and body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, headers)
}

// PostJSON marshals in, posts it to url and decodes the response into out.
// out may be nil when the response body is not needed.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	h := map[string]string{"Content-Type": "application/json; charset=UTF-8"}
	for k, v := range headers {
		h[k] = v
	}

	resp, err := c.Do(ctx, http.MethodPost, url, bytes.NewReader(payload), h)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do performs a single HTTP request with rate limit handling.
// The circuit breaker is used to fail fast when a host is unresponsive.
func (c *Client) Do(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) (*Response, error) {
	domain := c.rateLimiter.extractDomain(urlStr)

	if err := c.circuitBreaker.Allow(domain); err != nil {
		return nil, err
	}

	// Wait for any backoff period from previous rate limit errors
	if err := c.rateLimiter.WaitForBackoff(ctx, urlStr); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRequestFailed, err)
		c.circuitBreaker.RecordFailure(domain, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("read response body: %w", err)
		c.circuitBreaker.RecordFailure(domain, err)
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		retryAfter := parseRetryAfter(resp.Header)
		if recommended := c.rateLimiter.RecordRateLimitError(urlStr, retryAfter); recommended > retryAfter {
			retryAfter = recommended
		}
		err := &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter, Body: respBody}
		c.circuitBreaker.RecordFailure(domain, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &HTTPError{StatusCode: resp.StatusCode, Body: respBody}
		c.circuitBreaker.RecordFailure(domain, err)
		return nil, err
	}

	c.rateLimiter.RecordSuccess(urlStr)
	c.circuitBreaker.RecordSuccess(domain)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// parseRetryAfter extracts the Retry-After header value.
// Returns the duration to wait, or 0 if not present.
func parseRetryAfter(header http.Header) time.Duration {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return 0
}

// Close closes the HTTP client connections and releases all resources.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}
