package insightwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title        string
	fetcher      Fetcher[Insight]
	source       *InsightSource
	issues       []string
	port         int
	logger       *slog.Logger
	sessionOpts  []ControllerOption
	obsCallbacks []func(Observation[Insight])
}

// Option is a function that configures a [Board] during construction.
//
// Option implements the functional options pattern. Options return an error
// if validation fails.
//
// Built-in options: [WithSource], [WithFetcher], [WithIssues],
// [WithPollingInterval], [WithSessionOptions], [WithPort], [WithTitle],
// [WithLogger], [WithObservationCallback].
type Option func(*boardConfig) error

// WithSource polls the insight service described by src over HTTP.
//
// Either WithSource or [WithFetcher] is required. When both are given the
// fetcher wins.
//
// Example:
//
//	src, _ := insightwatch.NewInsightSource("http://localhost:8083")
//	b, err := insightwatch.New(insightwatch.WithSource(src))
func WithSource(src InsightSource) Option {
	return func(cfg *boardConfig) error {
		if src.baseURL == "" {
			return errors.New("source must be created with NewInsightSource")
		}
		cfg.source = &src
		return nil
	}
}

// WithFetcher sets a custom [Fetcher] for insights, e.g. a different
// transport or a stub in tests.
//
// Returns an error if f is nil.
func WithFetcher(f Fetcher[Insight]) Option {
	return func(cfg *boardConfig) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithIssues adds issues to watch as soon as the board starts.
//
// Can be called multiple times. Identifiers are trimmed; empty and duplicate
// identifiers are rejected by [New].
func WithIssues(issueIDs ...string) Option {
	return func(cfg *boardConfig) error {
		for _, id := range issueIDs {
			cfg.issues = append(cfg.issues, strings.TrimSpace(id))
		}
		return nil
	}
}

// WithPollingInterval sets the time between poll ticks of every session.
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.sessionOpts = append(cfg.sessionOpts, WithInterval(d))
		return nil
	}
}

// WithSessionOptions passes [ControllerOption] values to the controller of
// every watched issue, e.g. [WithMaxAttempts] or [WithClock].
//
// Example:
//
//	b, err := insightwatch.New(
//	    insightwatch.WithSource(src),
//	    insightwatch.WithSessionOptions(insightwatch.WithMaxAttempts(24)),
//	)
//
// The options are validated by [New].
func WithSessionOptions(opts ...ControllerOption) Option {
	return func(cfg *boardConfig) error {
		cfg.sessionOpts = append(cfg.sessionOpts, opts...)
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the board and its sessions.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithObservationCallback registers a function called with every
// observation of every watched issue, after the snapshot is stored.
//
// Multiple callbacks run in registration order.
//
// IMPORTANT: Callbacks run on the session goroutine while the session is
// locked. They must be non-blocking and must not call [Board.Watch] or
// [Board.Unwatch] synchronously. Panics are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithObservationCallback(cb func(Observation[Insight])) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.obsCallbacks = append(cfg.obsCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header. If not specified, defaults to "Insightwatch".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// validateIssues rejects empty and duplicate identifiers.
func validateIssues(issues []string) error {
	seen := make(map[string]bool, len(issues))
	for _, id := range issues {
		if id == "" {
			return errors.New("issue id cannot be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate issue id: %q", id)
		}
		seen[id] = true
	}
	return nil
}
