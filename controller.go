package insightwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 12
)

// controllerConfig holds mutable state during Controller construction.
type controllerConfig struct {
	interval    time.Duration
	maxAttempts int
	clock       clockwork.Clock
	logger      *slog.Logger
}

// ControllerOption configures a [Controller] during construction.
type ControllerOption func(*controllerConfig) error

// WithInterval sets the time between poll ticks. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) ControllerOption {
	return func(cfg *controllerConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithMaxAttempts sets the number of poll ticks a session may spend before
// giving up. Defaults to 12.
//
// Returns an error if n is less than 1.
func WithMaxAttempts(n int) ControllerOption {
	return func(cfg *controllerConfig) error {
		if n < 1 {
			return errors.New("max attempts must be at least 1")
		}
		cfg.maxAttempts = n
		return nil
	}
}

// WithClock sets the clock used for tickers and observation timestamps.
// Tests pass a fake clock to drive ticks without waiting.
func WithClock(clock clockwork.Clock) ControllerOption {
	return func(cfg *controllerConfig) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clock
		return nil
	}
}

// WithControllerLogger sets the logger for session events.
// If not specified, [slog.Default] is used.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(cfg *controllerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// Controller polls a [Fetcher] for an eventually-available resource.
//
// A Controller runs at most one session at a time. Each session issues an
// immediate fetch; if the resource is not ready it arms a ticker and
// fetches again on every tick until the resource is ready, the attempt
// budget runs out, or the session is cancelled. Consumers see only the
// collapsed [State] values through the [Observer]: one pending when the
// first fetch comes back empty, then at most one ready or unavailable.
// A session that is cancelled before its first fetch settles is never
// observed.
//
// All methods are safe for concurrent use.
type Controller[T any] struct {
	fetcher     Fetcher[T]
	observer    Observer[T]
	interval    time.Duration
	maxAttempts int
	clock       clockwork.Clock
	logger      *slog.Logger

	mu      sync.Mutex
	current *session[T]
}

// NewController creates a [Controller] that polls fetcher and reports to
// observer. A nil observer is allowed and discards observations.
//
// Returns an error if fetcher is nil or any option is invalid.
func NewController[T any](fetcher Fetcher[T], observer Observer[T], opts ...ControllerOption) (*Controller[T], error) {
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}

	cfg := &controllerConfig{
		interval:    defaultPollInterval,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	clock := cfg.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller[T]{
		fetcher:     fetcher,
		observer:    observer,
		interval:    cfg.interval,
		maxAttempts: cfg.maxAttempts,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Interval returns the time between poll ticks.
func (c *Controller[T]) Interval() time.Duration {
	return c.interval
}

// MaxAttempts returns the attempt budget of each session.
func (c *Controller[T]) MaxAttempts() int {
	return c.maxAttempts
}

// Activate starts a session for identifier and returns its handle.
//
// A live session for a different identifier is cancelled before the new one
// starts, so no observation for it can follow. Activating the identifier of
// a session that is still live returns that session's handle. An empty
// identifier cancels the current session and returns the zero handle.
func (c *Controller[T]) Activate(identifier string) SessionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.current; cur != nil {
		if cur.identifier == identifier && !cur.currentPhase().Terminal() {
			return cur.handle()
		}
		cur.cancel()
		c.current = nil
	}

	if identifier == "" {
		return SessionHandle{}
	}

	s := c.newSession(identifier)
	c.current = s
	s.logger.Debug("session started")
	go s.run()

	return s.handle()
}

// Cancel cancels the session behind h. It is idempotent and safe to call on
// terminal sessions or on the zero handle. Once Cancel returns, the observer
// receives nothing further for that session.
func (c *Controller[T]) Cancel(h SessionHandle) {
	if h.ref == nil {
		return
	}
	h.ref.cancel()

	c.mu.Lock()
	if c.current != nil && sessionRef(c.current) == h.ref {
		c.current = nil
	}
	c.mu.Unlock()
}

// Phase returns the current phase of the session behind h.
// The zero handle reports [PhaseCancelled].
func (c *Controller[T]) Phase(h SessionHandle) Phase {
	if h.ref == nil {
		return PhaseCancelled
	}
	return h.ref.currentPhase()
}

// Close cancels the current session, if any.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()

	if cur != nil {
		cur.cancel()
	}
}

func (c *Controller[T]) newSession(identifier string) *session[T] {
	id := uuid.NewString()
	ctx, stop := context.WithCancel(context.Background())

	return &session[T]{
		id:          id,
		identifier:  identifier,
		fetcher:     c.fetcher,
		observer:    c.observer,
		interval:    c.interval,
		maxAttempts: c.maxAttempts,
		clock:       c.clock,
		logger:      c.logger.With("identifier", identifier, "session_id", id),
		ctx:         ctx,
		stop:        stop,
		done:        make(chan struct{}),
		phase:       PhaseFetching,
	}
}

// SessionHandle refers to one session of a [Controller]. It is only good for
// cancellation and introspection.
type SessionHandle struct {
	ref        sessionRef
	sessionID  string
	identifier string
}

// Identifier returns the identifier the session polls for.
func (h SessionHandle) Identifier() string {
	return h.identifier
}

// SessionID returns the unique id of the session.
func (h SessionHandle) SessionID() string {
	return h.sessionID
}

// IsZero reports whether h refers to no session.
func (h SessionHandle) IsZero() bool {
	return h.ref == nil
}

// sessionRef erases the payload type so handles stay non-generic.
type sessionRef interface {
	cancel()
	currentPhase() Phase
	finished() <-chan struct{}
}

// session is one bounded attempt sequence for one identifier.
//
// The run goroutine is the only flow that fetches. Every transition, and
// every observer call, happens under mu after checking cancelled, which is
// also set under mu by cancel.
type session[T any] struct {
	id          string
	identifier  string
	fetcher     Fetcher[T]
	observer    Observer[T]
	interval    time.Duration
	maxAttempts int
	clock       clockwork.Clock
	logger      *slog.Logger
	ctx         context.Context
	stop        context.CancelFunc
	done        chan struct{}

	mu        sync.Mutex
	phase     Phase
	attempts  int
	cancelled bool
	ticker    clockwork.Ticker // non-nil only while phase is PhasePolling
}

func (s *session[T]) handle() SessionHandle {
	return SessionHandle{ref: s, sessionID: s.id, identifier: s.identifier}
}

func (s *session[T]) finished() <-chan struct{} {
	return s.done
}

func (s *session[T]) currentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// run drives the session from the first fetch to a terminal phase.
func (s *session[T]) run() {
	defer close(s.done)
	defer s.stop()

	if !s.start() {
		return
	}

	res, err := s.fetch(0)
	ticks, polling := s.settleFirst(res, err)
	if !polling {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticks:
			attempt, ok := s.beginAttempt()
			if !ok {
				return
			}
			res, err := s.fetch(attempt)
			if !s.settleAttempt(res, err) {
				return
			}
		}
	}
}

// start reports whether the session is still live once its goroutine runs.
func (s *session[T]) start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.cancelled
}

// settleFirst applies the outcome of the initial fetch. It returns the tick
// channel and true when the session moved to polling.
func (s *session[T]) settleFirst(res Result[T], err error) (<-chan time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return nil, false
	}

	if err == nil && res.Ready {
		s.finish(PhaseReady)
		s.logger.Info("resource ready", "attempt", 0)
		s.notify(StateReady, res.Payload)
		return nil, false
	}

	s.phase = PhasePolling
	s.attempts = 0
	s.ticker = s.clock.NewTicker(s.interval)
	s.logger.Debug("resource not ready, polling",
		"interval", s.interval.String(),
		"max_attempts", s.maxAttempts,
	)
	var zero T
	s.notify(StatePending, zero)
	return s.ticker.Chan(), true
}

// beginAttempt spends one attempt of the budget for the current tick.
func (s *session[T]) beginAttempt() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.phase != PhasePolling {
		return 0, false
	}
	s.attempts++
	return s.attempts, true
}

// settleAttempt applies the outcome of a tick's fetch and reports whether
// polling continues.
func (s *session[T]) settleAttempt(res Result[T], err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return false
	}

	if err == nil && res.Ready {
		s.finish(PhaseReady)
		s.logger.Info("resource ready", "attempt", s.attempts)
		s.notify(StateReady, res.Payload)
		return false
	}

	if s.attempts >= s.maxAttempts {
		s.finish(PhaseGaveUp)
		s.logger.Info("attempt budget exhausted", "attempts", s.attempts)
		var zero T
		s.notify(StateUnavailable, zero)
		return false
	}

	return true
}

// finish moves to a terminal phase and releases the ticker. Callers hold mu.
func (s *session[T]) finish(phase Phase) {
	s.phase = phase
	s.disposeTicker()
}

// disposeTicker stops and drops the ticker. Callers hold mu.
func (s *session[T]) disposeTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *session[T]) cancel() {
	s.mu.Lock()
	wasLive := !s.cancelled && !s.phase.Terminal()
	s.cancelled = true
	if !s.phase.Terminal() {
		s.finish(PhaseCancelled)
	}
	s.mu.Unlock()

	s.stop()

	if wasLive {
		s.logger.Debug("session cancelled")
	}
}

// fetch calls the fetcher with panic recovery. A panic becomes an error
// carrying a correlation id; the stack is logged.
func (s *session[T]) fetch(attempt int) (res Result[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("fetcher panic",
				"correlation_id", correlationID,
				"attempt", attempt,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			res = Result[T]{}
			err = fmt.Errorf("fetcher panic (correlation_id: %s)", correlationID)
		}
	}()

	res, err = s.fetcher.Fetch(s.ctx, s.identifier)
	switch {
	case err != nil:
		s.logger.Debug("fetch failed", "attempt", attempt, "error", err.Error())
	case !res.Ready:
		s.logger.Debug("fetch not ready", "attempt", attempt)
	}
	return res, err
}

// notify delivers an observation. Callers hold mu.
func (s *session[T]) notify(state State, payload T) {
	if s.observer == nil {
		return
	}

	obs := Observation[T]{
		Identifier: s.identifier,
		SessionID:  s.id,
		State:      state,
		Payload:    payload,
		Attempt:    s.attempts,
		ObservedAt: s.clock.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panicked",
				"panic", r,
				"state", state.String(),
			)
		}
	}()
	s.observer(obs)
}
