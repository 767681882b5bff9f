package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 16 << 20

// RawResult is the successful outcome of one exchange.
type RawResult struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Decode unmarshals the body into out.
func (r *RawResult) Decode(out any) error {
	return json.Unmarshal(r.Body, out)
}

// Client is one pooled transport, owned by one adapter. A bounded semaphore
// caps concurrent in-flight requests per source; connections are reused
// through the shared http.Transport.
type Client struct {
	http      *http.Client
	sem       chan struct{}
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxInFlight caps concurrent requests through this client.
func WithMaxInFlight(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a pooled transport.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				MaxConnsPerHost:     16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sem:       make(chan struct{}, 8),
		userAgent: "usdata-mcp/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues one exchange under the spec's timeout and classifies the
// outcome. A nil ClassifiedError means a 2xx response.
func (c *Client) Do(ctx context.Context, spec RequestSpec) (*RawResult, *ClassifiedError) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, classifyCtx(ctx.Err())
	}

	attemptCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	var body io.Reader
	if spec.Body != nil {
		encoded, err := json.Marshal(spec.Body)
		if err != nil {
			return nil, terminalErr(0, "encode request body: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(attemptCtx, spec.Method, spec.URL(), body)
	if err != nil {
		return nil, terminalErr(0, "build request: %v", err)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if spec.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transientErr(resp.StatusCode, "read response body: %v", err)
	}

	if cerr := classifyStatus(resp.StatusCode, resp.Header, payload); cerr != nil {
		return nil, cerr
	}
	return &RawResult{
		StatusCode: resp.StatusCode,
		Body:       payload,
		Header:     resp.Header,
	}, nil
}

func classifyStatus(status int, header http.Header, body []byte) *ClassifiedError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &ClassifiedError{
			Kind:       KindRateLimit,
			StatusCode: status,
			Message:    "rate limited by upstream",
			RetryAfter: ParseRetryAfter(header, time.Now()),
		}
	case status >= 500:
		return transientErr(status, "server error: %s", snippet(body))
	default:
		return terminalErr(status, "client error: %s", snippet(body))
	}
}

func classifyTransport(err error) *ClassifiedError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return transientErr(0, "request timed out")
	case errors.Is(err, context.Canceled):
		return terminalErr(0, "request canceled")
	default:
		// Connection resets, refused connections, DNS failures.
		return transientErr(0, "connection failed: %v", err)
	}
}

func classifyCtx(err error) *ClassifiedError {
	if errors.Is(err, context.DeadlineExceeded) {
		return transientErr(0, "deadline exceeded before dispatch")
	}
	return terminalErr(0, "request canceled")
}

// ParseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. Returns 0 when absent or unparseable.
func ParseRetryAfter(header http.Header, now time.Time) time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if at, err := time.Parse(layout, raw); err == nil {
			if d := at.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
