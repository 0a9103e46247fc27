package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// a dashboard polls one service, so the pool is sized for a single host
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Request describes a single insight lookup.
type Request struct {
	// BaseURL is the root of the insight service, e.g. http://localhost:8083.
	BaseURL string

	// IssueID is the issue whose insight is requested.
	IssueID string

	// Headers are sent with the request (authorization, tracing, ...).
	Headers map[string]string

	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration
}

// Response holds the result of a lookup made by [Client].
type Response struct {
	// Body contains the response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code. Zero if no response was received.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is set when the request could not be completed.
	Error error
}

// Client is an HTTP client for insight lookups.
//
// Timeouts are applied per request via context rather than on the client,
// so one Client can serve sources with different timeouts.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a [Client] with a pooled transport and no global timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// InsightURL builds the lookup URL for issueID under base. The issue id is
// path-escaped; any path already present on base is kept.
func InsightURL(base, issueID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if issueID == "" {
		return "", fmt.Errorf("issue id is required")
	}
	rawPrefix := strings.TrimSuffix(u.EscapedPath(), "/")
	u.Path = strings.TrimSuffix(u.Path, "/") + "/issues/" + issueID + "/insight"
	u.RawPath = rawPrefix + "/issues/" + url.PathEscape(issueID) + "/insight"
	return u.String(), nil
}

// GetInsight performs the lookup described by req.
//
// GetInsight always returns a Response; failures are reported in its Error
// field. A non-2xx status is not an error at this level, interpreting it is
// left to the caller.
func (c *Client) GetInsight(ctx context.Context, req Request) Response {
	start := time.Now()

	target, err := InsightURL(req.BaseURL, req.IssueID)
	if err != nil {
		return Response{Latency: time.Since(start), Error: err}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close releases idle connections. The client stays usable afterwards.
// Safe to call multiple times and on a nil receiver.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
