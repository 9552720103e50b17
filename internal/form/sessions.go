package form

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"regform/internal/registration/metrics"
	"regform/internal/registration/models"
	"regform/internal/validation"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/requestcontext"
)

// DefaultSessionTTL is how long an untouched form session is kept.
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	mu       sync.Mutex
	machine  *Machine
	lastSeen time.Time
}

// Sessions hosts one Machine per form session for HTTP clients. Events for
// a session are applied one at a time under the session lock. Saves run in
// the background through the Saver; their outcome is applied to the machine
// when they finish unless the session was closed in the meantime.
type Sessions struct {
	saver   Saver
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
	ttl     time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
	inflight sync.WaitGroup
}

// SessionOption configures Sessions.
type SessionOption func(*Sessions)

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Sessions) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Sessions) {
		s.metrics = m
	}
}

// WithTTL sets the idle timeout. Zero disables expiry.
func WithTTL(ttl time.Duration) SessionOption {
	return func(s *Sessions) {
		s.ttl = ttl
	}
}

func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *Sessions) {
		s.clock = clock
	}
}

func NewSessions(saver Saver, opts ...SessionOption) *Sessions {
	s := &Sessions{
		saver:    saver,
		logger:   slog.Default(),
		clock:    time.Now,
		ttl:      DefaultSessionTTL,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a new empty form and returns its session id.
func (s *Sessions) Open(ctx context.Context) (string, State) {
	id := uuid.NewString()
	sess := &session{
		machine:  New(WithClock(s.clock), WithRejectHook(s.recordRejection)),
		lastSeen: s.clock(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.reportActive(n)
	s.logger.InfoContext(ctx, "form session opened", "session_id", id)
	return id, sess.machine.Snapshot()
}

// State returns the current state of a session.
func (s *Sessions) State(ctx context.Context, id string) (State, error) {
	return s.apply(id, func(*Machine) error { return nil })
}

// Change applies a field change event.
func (s *Sessions) Change(ctx context.Context, id string, field validation.Field, value string) (State, error) {
	return s.apply(id, func(m *Machine) error { return m.Change(field, value) })
}

// Blur applies a field blur event.
func (s *Sessions) Blur(ctx context.Context, id string, field validation.Field) (State, error) {
	return s.apply(id, func(m *Machine) error { return m.Blur(field) })
}

// Submit validates the session's draft and, when valid, starts saving it.
// The returned channel yields the state once the save outcome was applied
// and is then closed. It is nil when the submit was refused. The save is not
// tied to ctx's cancellation.
func (s *Sessions) Submit(ctx context.Context, id string) (State, <-chan State, error) {
	sess, err := s.get(id)
	if err != nil {
		return State{}, nil, err
	}

	sess.mu.Lock()
	if sess.machine.Closed() {
		sess.mu.Unlock()
		return State{}, nil, notFound()
	}
	sess.lastSeen = s.clock()
	sub, err := sess.machine.Submit()
	st := sess.machine.Snapshot()
	sess.mu.Unlock()
	if err != nil {
		return st, nil, translate(err)
	}

	done := make(chan State, 1)
	s.inflight.Add(1)
	go s.persist(requestcontext.WithSessionID(context.WithoutCancel(ctx), id), id, sess, sub, done)
	return st, done, nil
}

func (s *Sessions) persist(ctx context.Context, id string, sess *session, sub Submission, done chan<- State) {
	defer s.inflight.Done()
	defer close(done)

	saved, err := s.saver.Save(ctx, sub.Registration)

	sess.mu.Lock()
	applied := sess.machine.Complete(sub.Token, saved, err)
	st := sess.machine.Snapshot()
	sess.mu.Unlock()

	switch {
	case !applied:
		s.logger.InfoContext(ctx, "form save outcome discarded", "session_id", id, "error", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "form save failed",
			"session_id", id,
			"kind", models.Classify(err),
			"error", err,
		)
	default:
		s.logger.InfoContext(ctx, "form saved", "session_id", id, "registration_id", saved.ID)
	}
	done <- st
}

// Close tears a session down. An in-flight save still completes but its
// outcome is discarded.
func (s *Sessions) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}

	sess.mu.Lock()
	sess.machine.Close()
	sess.mu.Unlock()

	s.reportActive(n)
	s.logger.InfoContext(ctx, "form session closed", "session_id", id)
	return nil
}

// Run expires idle sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) error {
	if s.ttl <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := max(s.ttl/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.InfoContext(ctx, "expired idle form sessions", "count", n)
			}
		}
	}
}

// Sweep closes every session idle for longer than the TTL and returns how
// many were closed.
func (s *Sessions) Sweep(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.clock().Add(-s.ttl)

	s.mu.RLock()
	var expired []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, id)
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range expired {
		if err := s.Close(ctx, id); err == nil {
			closed++
		}
	}
	return closed
}

// Wait blocks until every in-flight save has finished.
func (s *Sessions) Wait() {
	s.inflight.Wait()
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Sessions) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound()
	}
	return sess, nil
}

func (s *Sessions) apply(id string, fn func(m *Machine) error) (State, error) {
	sess, err := s.get(id)
	if err != nil {
		return State{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.machine.Closed() {
		return State{}, notFound()
	}
	sess.lastSeen = s.clock()
	err = fn(sess.machine)
	return sess.machine.Snapshot(), translate(err)
}

func (s *Sessions) recordRejection(field validation.Field, out validation.Outcome) {
	if s.metrics != nil {
		s.metrics.IncrementFieldRejection(string(field), string(out.Code()))
	}
}

func (s *Sessions) reportActive(n int) {
	if s.metrics != nil {
		s.metrics.SetActiveFormSessions(n)
	}
}

func notFound() error {
	return dErrors.New(dErrors.CodeNotFound, "form session not found")
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownField):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "unknown form field")
	case errors.Is(err, ErrInvalid):
		return dErrors.Wrap(err, dErrors.CodeValidation, "form has invalid fields")
	case errors.Is(err, ErrInFlight):
		return dErrors.Wrap(err, dErrors.CodeConflict, "a submission is already in progress")
	case errors.Is(err, ErrClosed):
		return notFound()
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "form error")
	}
}
