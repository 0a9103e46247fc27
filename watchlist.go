package insightwatch

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jpalmerr/insightwatch/internal/store"
)

// ErrNotRunning is returned by [Board.Watch] when the board is not started.
var ErrNotRunning = errors.New("board is not running")

// watchEntry is one watched issue.
type watchEntry struct {
	ctrl  *Controller[Insight]
	guard *Guard[Insight]
}

// watchlist owns one Controller and Guard per watched issue and mirrors
// their observations into a snapshot store.
//
// It implements the server's Watcher interface.
type watchlist struct {
	fetcher     Fetcher[Insight]
	sessionOpts []ControllerOption
	store       store.Store
	callbacks   []func(Observation[Insight])
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[string]*watchEntry
	closed  bool
}

func newWatchlist(fetcher Fetcher[Insight], sessionOpts []ControllerOption, st store.Store, callbacks []func(Observation[Insight]), logger *slog.Logger) *watchlist {
	return &watchlist{
		fetcher:     fetcher,
		sessionOpts: sessionOpts,
		store:       st,
		callbacks:   callbacks,
		logger:      logger,
		entries:     make(map[string]*watchEntry),
	}
}

// Watch starts polling issueID. Watching an issue that is already watched is
// a no-op, even when its session reached a terminal state.
func (w *watchlist) Watch(issueID string) error {
	issueID = strings.TrimSpace(issueID)
	if issueID == "" {
		return errors.New("issue id cannot be empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrNotRunning
	}
	if _, ok := w.entries[issueID]; ok {
		return nil
	}

	opts := append([]ControllerOption{WithControllerLogger(w.logger)}, w.sessionOpts...)
	ctrl, err := NewController(w.fetcher, w.observe, opts...)
	if err != nil {
		return err
	}

	guard := NewGuard(ctrl)
	w.entries[issueID] = &watchEntry{ctrl: ctrl, guard: guard}
	guard.Set(issueID)

	w.logger.Info("watching issue", "issue", issueID)
	return nil
}

// Unwatch stops polling issueID and removes its snapshot. Reports whether
// the issue was watched.
func (w *watchlist) Unwatch(issueID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok := w.entries[issueID]
	if !ok {
		return false
	}
	delete(w.entries, issueID)

	// once Close returns no observation can recreate the snapshot
	entry.guard.Close()
	w.store.Delete(issueID)

	w.logger.Info("stopped watching issue", "issue", issueID)
	return true
}

// Watched returns the watched issue ids in order.
func (w *watchlist) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(w.entries))
	for id := range w.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Phase returns the phase of the session watching issueID.
func (w *watchlist) Phase(issueID string) (Phase, bool) {
	w.mu.Lock()
	entry, ok := w.entries[issueID]
	w.mu.Unlock()

	if !ok {
		return PhaseCancelled, false
	}
	return entry.ctrl.Phase(entry.guard.Handle()), true
}

// Close cancels every session. Snapshots stay in the store. Later calls to
// Watch fail with [ErrNotRunning].
func (w *watchlist) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	for id, entry := range w.entries {
		entry.guard.Close()
		delete(w.entries, id)
	}
}

// observe is the observer of every controller. It runs under the session
// lock, so it must not take w.mu.
func (w *watchlist) observe(obs Observation[Insight]) {
	w.store.Update(observationToSnapshot(obs))

	for _, cb := range w.callbacks {
		invokeCallbackSafe(cb, obs, w.logger)
	}

	logAttrs := []any{
		"issue", obs.Identifier,
		"state", obs.State.String(),
		"attempt", obs.Attempt,
	}
	if obs.State == StatePending {
		w.logger.Debug("insight observed", logAttrs...)
	} else {
		w.logger.Info("insight observed", logAttrs...)
	}
}

// observationToSnapshot converts an observation to its stored form.
func observationToSnapshot(obs Observation[Insight]) store.Snapshot {
	snap := store.Snapshot{
		IssueID:   obs.Identifier,
		SessionID: obs.SessionID,
		State:     obs.State.String(),
		Attempt:   obs.Attempt,
		UpdatedAt: obs.ObservedAt,
	}
	if obs.State == StateReady {
		snap.Insight = &store.Insight{
			Summary:     obs.Payload.Summary,
			RootCause:   obs.Payload.RootCause,
			Remediation: obs.Payload.Remediation,
			ModelUsed:   obs.Payload.ModelUsed,
			TokensUsed:  obs.Payload.TokensUsed,
			CreatedAt:   obs.Payload.CreatedAt,
		}
	}
	return snap
}

// invokeCallbackSafe calls an observation callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Observation[Insight]), obs Observation[Insight], logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("observation callback panicked",
				"panic", r,
				"issue", obs.Identifier,
			)
		}
	}()
	cb(obs)
}
