package insightwatch

import (
	"errors"
	"net/url"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// InsightSource describes where and how insights are looked up.
//
// InsightSource is immutable after creation via [NewInsightSource]. Getter
// methods return copies of mutable data. Configure it with
// [SourceOption] functions such as [WithToken], [WithHeaders],
// [WithTimeout] and [WithPayloadExtractor].
type InsightSource struct {
	baseURL   string
	token     string
	headers   map[string]string
	timeout   time.Duration
	extractor PayloadExtractor
}

// BaseURL returns the root URL of the insight service.
func (s InsightSource) BaseURL() string {
	return s.baseURL
}

// HasToken reports whether a bearer token is attached to requests.
func (s InsightSource) HasToken() bool {
	return s.token != ""
}

// Headers returns a copy of the custom headers sent with every lookup.
// The Authorization header derived from the token is not included.
func (s InsightSource) Headers() map[string]string {
	return copyMap(s.headers)
}

// Timeout returns the per-request timeout. Defaults to 10 seconds.
func (s InsightSource) Timeout() time.Duration {
	return s.timeout
}

// Extractor returns the configured [PayloadExtractor], or nil when
// [DefaultPayloadExtractor] applies.
func (s InsightSource) Extractor() PayloadExtractor {
	return s.extractor
}

// requestHeaders returns the headers for one lookup, including the bearer
// token.
func (s InsightSource) requestHeaders() map[string]string {
	headers := make(map[string]string, len(s.headers)+1)
	for k, v := range s.headers {
		headers[k] = v
	}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}
	return headers
}

// NewInsightSource creates an [InsightSource] for the service at rawURL.
//
// The URL must use http or https and name a host. Options are applied in
// order.
//
// Example:
//
//	src, err := insightwatch.NewInsightSource("http://localhost:8083",
//	    insightwatch.WithToken(os.Getenv("ATLAS_TOKEN")),
//	    insightwatch.WithTimeout(5 * time.Second),
//	)
func NewInsightSource(rawURL string, opts ...SourceOption) (InsightSource, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return InsightSource{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return InsightSource{}, errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsedURL.Host == "" {
		return InsightSource{}, errors.New("URL must have a host")
	}

	cfg := &sourceConfig{
		headers: make(map[string]string),
		timeout: defaultRequestTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return InsightSource{}, err
		}
	}

	return InsightSource{
		baseURL:   rawURL,
		token:     cfg.token,
		headers:   cfg.headers,
		timeout:   cfg.timeout,
		extractor: cfg.extractor,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
