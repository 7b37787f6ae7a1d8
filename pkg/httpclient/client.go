// Package httpclient sends requests to downstream agents with bounded,
// status-aware retries.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 250 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// Client wraps http.Client. Only idempotent requests are retried: a POST
// is sent exactly once whatever the retry budget.
type Client struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = max(0, n)
	}
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithMaxDelay caps a single backoff. A Retry-After longer than the cap
// ends retrying instead of waiting.
func WithMaxDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = delay
	}
}

// New returns a client without a client-level timeout; requests are
// bounded by their context.
func New(opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{},
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client for libraries that take a plain
// *http.Client (oauth2, JWKS fetchers).
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Retryable reports whether a response status is transient.
func Retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func idempotent(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return req.Header.Get("Idempotency-Key") != ""
	}
}

// Do sends req. Transport errors and transient statuses on idempotent
// requests are retried up to the budget. Any final HTTP status is returned
// as a response for the caller to inspect.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	budget := c.maxRetries
	if !idempotent(req) {
		budget = 0
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt >= budget || ctx.Err() != nil {
				return nil, err
			}
			if err := c.wait(ctx, req, attempt, c.backoff(attempt), err.Error()); err != nil {
				return nil, err
			}
			continue
		}

		if !Retryable(resp.StatusCode) || attempt >= budget {
			return resp, nil
		}

		delay := RetryAfter(resp.Header, time.Now())
		if delay > c.maxDelay {
			return resp, nil
		}
		if delay <= 0 {
			delay = c.backoff(attempt)
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := c.wait(ctx, req, attempt, delay, resp.Status); err != nil {
			return nil, err
		}
	}
}

func (c *Client) wait(ctx context.Context, req *http.Request, attempt int, delay time.Duration, cause string) error {
	slog.Debug("Retrying HTTP request",
		"url", req.URL.Redacted(),
		"cause", cause,
		"delay", delay,
		"attempt", attempt+1,
		"max_retries", c.maxRetries,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff doubles baseDelay per attempt up to maxDelay and picks a random
// point in the upper half of that window.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseDelay << attempt
	if d <= 0 || d > c.maxDelay {
		d = c.maxDelay
	}
	half := d / 2
	return half + rand.N(half+1)
}
