package insightwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpalmerr/insightwatch/dashboard"
	"github.com/jpalmerr/insightwatch/internal/server"
	"github.com/jpalmerr/insightwatch/internal/store"
)

const defaultPort = 8080

// Board watches issues for their insights and serves a live dashboard.
//
// Each watched issue gets its own [Controller] bound by a [Guard]; their
// observations feed a snapshot store that backs the JSON API and the SSE
// stream. A Board is created using [New] and run with [Board.Start].
//
// The typical lifecycle is:
//
//	src, _ := insightwatch.NewInsightSource("http://localhost:8083")
//	b, err := insightwatch.New(
//	    insightwatch.WithSource(src),
//	    insightwatch.WithIssues("issue-42"),
//	)
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
type Board struct {
	title        string
	fetcher      Fetcher[Insight]
	closeFetcher func()
	issues       []string
	port         int
	logger       *slog.Logger
	sessionOpts  []ControllerOption
	obsCallbacks []func(Observation[Insight])

	mu        sync.Mutex
	watchlist *watchlist
}

// New creates a new [Board] with the given options.
//
// A source must be configured via [WithSource] or [WithFetcher]. Other
// options have defaults:
//   - Polling interval: 5 seconds
//   - Max attempts: 12
//   - Port: 8080
//
// Returns an error if no source is configured, if an issue id is empty or
// duplicated, or if any option is invalid.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		port: defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	fetcher := cfg.fetcher
	closeFetcher := func() {}
	if fetcher == nil {
		if cfg.source == nil {
			return nil, errors.New("an insight source or fetcher is required")
		}
		hf := NewHTTPFetcher(*cfg.source)
		fetcher = hf
		closeFetcher = hf.Close
	}

	if err := validateIssues(cfg.issues); err != nil {
		return nil, err
	}

	// surface invalid session options here rather than on the first Watch
	if _, err := NewController(fetcher, nil, cfg.sessionOpts...); err != nil {
		return nil, fmt.Errorf("invalid session option: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		title:        cfg.title,
		fetcher:      fetcher,
		closeFetcher: closeFetcher,
		issues:       cfg.issues,
		port:         cfg.port,
		logger:       logger,
		sessionOpts:  cfg.sessionOpts,
		obsCallbacks: cfg.obsCallbacks,
	}, nil
}

// Start watches the configured issues and serves the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Every configured issue is fetched immediately, then polled until its
//     insight is ready or the attempt budget runs out
//   - The HTTP server starts on the configured port
//   - Issues can be added and removed with [Board.Watch], [Board.Unwatch]
//     or the HTTP API
//
// On return every session is cancelled. Returns nil on graceful shutdown,
// or an error if the HTTP server fails to start.
func (b *Board) Start(ctx context.Context) error {
	b.logger.Info("insightwatch starting", "issue_count", len(b.issues))
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	if ctx.Err() != nil {
		return nil
	}

	snapshots := store.NewMemoryStore()
	wl := newWatchlist(b.fetcher, b.sessionOpts, snapshots, b.obsCallbacks, b.logger)

	b.mu.Lock()
	if b.watchlist != nil {
		b.mu.Unlock()
		return errors.New("board is already running")
	}
	b.watchlist = wl
	b.mu.Unlock()

	cleanup := func() {
		wl.Close()
		b.closeFetcher()

		b.mu.Lock()
		b.watchlist = nil
		b.mu.Unlock()
	}

	for _, id := range b.issues {
		if err := wl.Watch(id); err != nil {
			cleanup()
			return fmt.Errorf("failed to watch %q: %w", id, err)
		}
	}

	httpServer := server.NewServer(snapshots, wl, b.port, dashboard.Assets, b.title, b.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	b.logger.Info("insightwatch stopped")
	return nil
}

// Watch starts polling issueID on a running board. Watching an issue twice
// is a no-op.
//
// Returns [ErrNotRunning] if the board is not started.
func (b *Board) Watch(issueID string) error {
	wl := b.running()
	if wl == nil {
		return ErrNotRunning
	}
	return wl.Watch(issueID)
}

// Unwatch stops polling issueID and reports whether it was watched.
func (b *Board) Unwatch(issueID string) bool {
	wl := b.running()
	if wl == nil {
		return false
	}
	return wl.Unwatch(issueID)
}

// Watched returns the issues currently watched, or nil if the board is not
// running.
func (b *Board) Watched() []string {
	wl := b.running()
	if wl == nil {
		return nil
	}
	return wl.Watched()
}

// Phase returns the session phase of a watched issue.
func (b *Board) Phase(issueID string) (Phase, bool) {
	wl := b.running()
	if wl == nil {
		return PhaseCancelled, false
	}
	return wl.Phase(issueID)
}

func (b *Board) running() *watchlist {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watchlist
}

// Issues returns a copy of the issues watched at start.
func (b *Board) Issues() []string {
	cp := make([]string, len(b.issues))
	copy(cp, b.issues)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}
