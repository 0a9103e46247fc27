package insightwatch

import (
	"errors"
	"strings"
	"time"
)

// sourceConfig holds mutable state during source construction.
type sourceConfig struct {
	token     string
	headers   map[string]string
	timeout   time.Duration
	extractor PayloadExtractor
}

// SourceOption configures an [InsightSource] during construction.
//
// Built-in options: [WithToken], [WithHeaders], [WithTimeout],
// [WithPayloadExtractor].
type SourceOption func(*sourceConfig) error

// WithToken attaches "Authorization: Bearer <token>" to every lookup.
// An empty token is ignored, matching an unauthenticated session.
func WithToken(token string) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.token = strings.TrimSpace(token)
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every lookup.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	src, err := insightwatch.NewInsightSource(url,
//	    insightwatch.WithHeaders("X-Request-Source", "insightwatch"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) SourceOption {
	return func(cfg *sourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout. A lookup that times out counts
// as a failed attempt, which the controller treats like "not ready".
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) SourceOption {
	return func(cfg *sourceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithPayloadExtractor sets how responses are turned into insights.
// If not specified, [DefaultPayloadExtractor] is used. Nil is ignored.
func WithPayloadExtractor(e PayloadExtractor) SourceOption {
	return func(cfg *sourceConfig) error {
		cfg.extractor = e
		return nil
	}
}
