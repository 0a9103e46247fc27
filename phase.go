package insightwatch

import (
	"context"
	"time"
)

// Phase is the position of a polling session in its state machine.
//
// A session starts in [PhaseFetching]. [PhaseReady], [PhaseGaveUp] and
// [PhaseCancelled] are terminal: once reached, no further fetch is issued
// and no ticker exists.
type Phase int

const (
	// PhaseFetching is the initial phase: the first fetch is in flight.
	PhaseFetching Phase = iota

	// PhasePolling means the first fetch was not ready and a ticker is armed.
	PhasePolling

	// PhaseReady means a fetch returned the payload.
	PhaseReady

	// PhaseGaveUp means the attempt budget was exhausted.
	PhaseGaveUp

	// PhaseCancelled means the session was cancelled before reaching another
	// terminal phase.
	PhaseCancelled
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhasePolling:
		return "polling"
	case PhaseReady:
		return "ready"
	case PhaseGaveUp:
		return "gave_up"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition can leave p.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseGaveUp || p == PhaseCancelled
}

// State maps a phase onto what an observer sees. Fetching and polling
// collapse to [StatePending]. Cancelled sessions are never observed, so
// PhaseCancelled maps to the empty State.
func (p Phase) State() State {
	switch p {
	case PhaseFetching, PhasePolling:
		return StatePending
	case PhaseReady:
		return StateReady
	case PhaseGaveUp:
		return StateUnavailable
	default:
		return ""
	}
}

// State is the consumer-visible condition of a resource.
//
// Using a string type keeps JSON output and log lines readable.
type State string

const (
	// StatePending indicates the resource is not available yet and polling continues.
	StatePending State = "pending"

	// StateReady indicates the resource was retrieved; the observation carries the payload.
	StateReady State = "ready"

	// StateUnavailable indicates the attempt budget ran out without a result.
	StateUnavailable State = "unavailable"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Observation is a single notification delivered to an [Observer].
type Observation[T any] struct {
	// Identifier names the resource the session is polling for.
	Identifier string

	// SessionID uniquely identifies the session that produced the observation.
	SessionID string

	// State is pending, ready or unavailable.
	State State

	// Payload is the retrieved resource. Only meaningful when State is ready.
	Payload T

	// Attempt is the number of poll ticks spent when the observation was made.
	Attempt int

	// ObservedAt is the clock time of the transition.
	ObservedAt time.Time
}

// Observer receives observations for the sessions of one [Controller].
//
// Observers run on the session goroutine while the session is locked, which
// is what lets [Controller.Cancel] guarantee that no observation is delivered
// after it returns. An observer must therefore not call back into the same
// Controller or [Guard] synchronously; dispatch such work to a goroutine.
type Observer[T any] func(Observation[T])

// Result is the two-valued outcome of a single fetch attempt.
type Result[T any] struct {
	// Ready reports whether the resource exists.
	Ready bool

	// Payload is the resource. Ignored unless Ready is true.
	Payload T
}

// Fetcher is the remote fetch operation polled by a [Controller].
//
// Fetch must be safe to call repeatedly for the same identifier and should
// return well within the polling interval. The context is cancelled when the
// session is cancelled. A returned error is treated exactly like a result
// that is not ready.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, identifier string) (Result[T], error)
}

// FetchFunc adapts an ordinary function to the [Fetcher] interface.
type FetchFunc[T any] func(ctx context.Context, identifier string) (Result[T], error)

// Fetch calls f(ctx, identifier).
func (f FetchFunc[T]) Fetch(ctx context.Context, identifier string) (Result[T], error) {
	return f(ctx, identifier)
}
