package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regform/internal/audit"
	"regform/internal/registration/metrics"
	"regform/internal/registration/models"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/sentinel"
	"regform/pkg/requestcontext"
)

// Store persists registrations. Create assigns reg.ID and reports a taken
// e-mail as sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	List(ctx context.Context) ([]models.Registration, error)
}

// AuditPublisher records registration events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the registration list. Every write goes through Save, so
// every reader (list page, users API, terminal form) sees a record as soon
// as it is saved.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditPublisher
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("regform/registration"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists reg and returns it with its assigned ID. A missing
// timestamp is set to the current time. Errors carry domain codes:
// conflict for a taken e-mail, unavailable when the backend cannot be
// reached, internal otherwise. The underlying sentinel stays in the chain.
func (s *Service) Save(ctx context.Context, reg models.Registration) (models.Registration, error) {
	start := time.Now()
	requestID := requestcontext.RequestID(ctx)
	sessionID := requestcontext.SessionID(ctx)
	ctx, span := s.tracer.Start(ctx, "registration.Save")
	defer span.End()

	if sessionID != "" {
		span.SetAttributes(attribute.String("form.session_id", sessionID))
	}
	if reg.Timestamp.IsZero() {
		reg.Timestamp = s.now().UTC()
	}

	err := s.store.Create(ctx, &reg)
	if s.metrics != nil {
		s.metrics.ObserveSave(start)
	}
	if err != nil {
		kind := models.Classify(err)
		if s.metrics != nil {
			s.metrics.IncrementSaveFailure(string(kind))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		s.logger.WarnContext(ctx, "registration refused",
			"request_id", requestID,
			"session_id", sessionID,
			"kind", kind,
			"error", err,
		)
		s.emit(ctx, audit.Event{
			Action:    audit.ActionRegistrationRefused,
			Email:     reg.Email,
			Reason:    string(kind),
			RequestID: requestID,
			SessionID: sessionID,
		})
		return models.Registration{}, translateStoreError(err)
	}

	if s.metrics != nil {
		s.metrics.IncrementRegistrationsCreated()
	}
	span.SetAttributes(attribute.String("registration.id", reg.ID))
	s.logger.InfoContext(ctx, "registration saved",
		"request_id", requestID,
		"session_id", sessionID,
		"registration_id", reg.ID,
	)
	s.emit(ctx, audit.Event{
		Action:         audit.ActionRegistrationCreated,
		RegistrationID: reg.ID,
		Email:          reg.Email,
		RequestID:      requestID,
		SessionID:      sessionID,
	})
	return reg, nil
}

// List returns every registration, oldest first.
func (s *Service) List(ctx context.Context) ([]models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.List")
	defer span.End()

	regs, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		s.logger.ErrorContext(ctx, "failed to list registrations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, translateStoreError(err)
	}
	span.SetAttributes(attribute.Int("registration.count", len(regs)))
	if regs == nil {
		regs = []models.Registration{}
	}
	return regs, nil
}

// emit never fails the caller; a lost audit event is logged.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"request_id", event.RequestID,
			"action", event.Action,
			"error", err,
		)
	}
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, models.FailureDuplicate.Message())
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, models.FailureServerUnavailable.Message())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access registrations")
	}
}
