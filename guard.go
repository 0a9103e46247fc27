package insightwatch

import (
	"context"
	"sync"
)

// Guard binds a [Controller] to a consumer's lifetime and to the identifier
// the consumer currently cares about.
//
// Changing the identifier cancels the outgoing session before the next one
// starts; closing the guard cancels the current session. Either way no
// observation for the old session reaches the observer afterwards, even if
// its fetch is still outstanding.
type Guard[T any] struct {
	ctrl *Controller[T]

	mu         sync.Mutex
	identifier string
	handle     SessionHandle
	closed     bool
}

// NewGuard wraps ctrl. The guard assumes it is the only consumer driving ctrl.
func NewGuard[T any](ctrl *Controller[T]) *Guard[T] {
	return &Guard[T]{ctrl: ctrl}
}

// Set makes identifier the active identifier. Setting the current identifier
// again is a no-op; an empty identifier leaves no active session. Set does
// nothing once the guard is closed.
func (g *Guard[T]) Set(identifier string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || identifier == g.identifier {
		return
	}

	g.ctrl.Cancel(g.handle)
	g.handle = SessionHandle{}
	g.identifier = identifier

	if identifier != "" {
		g.handle = g.ctrl.Activate(identifier)
	}
}

// Identifier returns the active identifier, or "" if none.
func (g *Guard[T]) Identifier() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.identifier
}

// Handle returns the handle of the current session. It is the zero handle
// when no identifier is active.
func (g *Guard[T]) Handle() SessionHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handle
}

// Close tears the guard down and cancels the current session. It is
// idempotent.
func (g *Guard[T]) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true
	g.ctrl.Cancel(g.handle)
	g.handle = SessionHandle{}
	g.identifier = ""
}

// Bind feeds identifiers from ids into the guard until ctx is done or ids is
// closed, then closes the guard. Bind blocks.
func (g *Guard[T]) Bind(ctx context.Context, ids <-chan string) {
	defer g.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ids:
			if !ok {
				return
			}
			g.Set(id)
		}
	}
}
