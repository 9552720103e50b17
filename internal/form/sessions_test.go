package form

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"regform/internal/form/mocks"
	"regform/internal/registration/metrics"
	"regform/internal/registration/models"
	"regform/internal/validation"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/sentinel"
)

//go:generate mockgen -source=machine.go -destination=mocks/mocks.go -package=mocks Saver

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type SessionsSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *fakeClock
	saver   *mocks.MockSaver
	metrics *metrics.Metrics
	hosts   *Sessions
}

func TestSessionsSuite(t *testing.T) {
	suite.Run(t, new(SessionsSuite))
}

func (s *SessionsSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &fakeClock{now: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)}
	ctrl := gomock.NewController(s.T())
	s.saver = mocks.NewMockSaver(ctrl)
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.hosts = NewSessions(s.saver,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithTTL(10*time.Minute),
		WithSessionClock(s.clock.Now),
	)
}

func (s *SessionsSuite) openFilled() string {
	id, _ := s.hosts.Open(s.ctx)
	values := map[validation.Field]string{
		validation.FirstName:  "Jean",
		validation.LastName:   "Dupont",
		validation.Email:      "jean.dupont@example.com",
		validation.BirthDate:  "1980-05-12",
		validation.City:       "Paris",
		validation.PostalCode: "75001",
	}
	for f, v := range values {
		_, err := s.hosts.Change(s.ctx, id, f, v)
		s.Require().NoError(err)
	}
	return id
}

func (s *SessionsSuite) await(done <-chan State) State {
	s.T().Helper()
	s.Require().NotNil(done)
	select {
	case st := <-done:
		return st
	case <-time.After(2 * time.Second):
		s.FailNow("save did not complete")
		return State{}
	}
}

func (s *SessionsSuite) TestOpenAndState() {
	id, st := s.hosts.Open(s.ctx)
	s.NotEmpty(id)
	s.Equal(Editing, st.Phase)
	s.Equal(1, s.hosts.Len())
	s.InDelta(1, promtest.ToFloat64(s.metrics.ActiveFormSessions), 0)

	got, err := s.hosts.State(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(st.Values, got.Values)
}

func (s *SessionsSuite) TestUnknownSession() {
	_, err := s.hosts.State(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.hosts.Change(s.ctx, "missing", validation.City, "Paris")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, _, err = s.hosts.Submit(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.True(dErrors.HasCode(s.hosts.Close(s.ctx, "missing"), dErrors.CodeNotFound))
}

func (s *SessionsSuite) TestUnknownField() {
	id, _ := s.hosts.Open(s.ctx)
	_, err := s.hosts.Change(s.ctx, id, validation.Field("nickname"), "Neo")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *SessionsSuite) TestBlurRecordsRejection() {
	id, _ := s.hosts.Open(s.ctx)
	_, err := s.hosts.Change(s.ctx, id, validation.Email, "invalid-email")
	s.Require().NoError(err)

	st, err := s.hosts.Blur(s.ctx, id, validation.Email)
	s.Require().NoError(err)
	s.Equal("email is invalid", st.ErrorMessage(validation.Email))
	s.False(st.SubmitEnabled)
	s.InDelta(1, promtest.ToFloat64(s.metrics.FieldRejections.WithLabelValues("email", "INVALID_FORMAT")), 0)
}

func (s *SessionsSuite) TestSubmitInvalidDoesNotSave() {
	id, _ := s.hosts.Open(s.ctx)

	st, done, err := s.hosts.Submit(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.ErrorIs(err, ErrInvalid)
	s.Nil(done)
	s.Len(st.Errors, len(validation.Fields))
}

func (s *SessionsSuite) TestSubmitSuccess() {
	id := s.openFilled()
	s.saver.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, reg models.Registration) (models.Registration, error) {
			s.Equal("jean.dupont@example.com", reg.Email)
			s.True(reg.Timestamp.Equal(s.clock.Now()))
			reg.ID = "reg-1"
			return reg, nil
		})

	st, done, err := s.hosts.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(Submitting, st.Phase)

	final := s.await(done)
	s.Equal(SuccessMessage, final.SuccessMessage)
	s.Equal("reg-1", final.Saved.ID)
	s.Empty(final.Values[validation.Email])

	current, err := s.hosts.State(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(Editing, current.Phase)
	s.Equal(SuccessMessage, current.SuccessMessage)
}

func (s *SessionsSuite) TestSubmitDuplicate() {
	id := s.openFilled()
	s.saver.EXPECT().Save(gomock.Any(), gomock.Any()).
		Return(models.Registration{}, fmt.Errorf("insert: %w", sentinel.ErrConflict))

	_, done, err := s.hosts.Submit(s.ctx, id)
	s.Require().NoError(err)

	final := s.await(done)
	s.Equal("Email already exists", final.SubmitError)
	s.Equal("Jean", final.Values[validation.FirstName])
}

func (s *SessionsSuite) TestSecondSubmitWhileSaving() {
	id := s.openFilled()
	release := make(chan struct{})
	s.saver.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, reg models.Registration) (models.Registration, error) {
			<-release
			return reg, nil
		}).Times(1)

	_, done, err := s.hosts.Submit(s.ctx, id)
	s.Require().NoError(err)

	_, again, err := s.hosts.Submit(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Nil(again)

	close(release)
	s.Equal(SuccessMessage, s.await(done).SuccessMessage)
}

func (s *SessionsSuite) TestCloseDiscardsInFlightSave() {
	id := s.openFilled()
	release := make(chan struct{})
	s.saver.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, reg models.Registration) (models.Registration, error) {
			<-release
			return reg, nil
		})

	_, done, err := s.hosts.Submit(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NoError(s.hosts.Close(s.ctx, id))

	close(release)
	final := s.await(done)
	s.Empty(final.SuccessMessage)
	s.hosts.Wait()

	_, err = s.hosts.State(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(0, s.hosts.Len())
}

func (s *SessionsSuite) TestSubmitIgnoresRequestCancellation() {
	id := s.openFilled()
	s.saver.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, reg models.Registration) (models.Registration, error) {
			s.NoError(ctx.Err())
			return reg, nil
		})

	ctx, cancel := context.WithCancel(s.ctx)
	_, done, err := s.hosts.Submit(ctx, id)
	cancel()
	s.Require().NoError(err)
	s.Equal(SuccessMessage, s.await(done).SuccessMessage)
}

func (s *SessionsSuite) TestSweepExpiresIdleSessions() {
	idle, _ := s.hosts.Open(s.ctx)
	s.clock.Advance(6 * time.Minute)
	active, _ := s.hosts.Open(s.ctx)
	s.clock.Advance(5 * time.Minute)

	s.Equal(1, s.hosts.Sweep(s.ctx))

	_, err := s.hosts.State(s.ctx, idle)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.hosts.State(s.ctx, active)
	s.NoError(err)
	s.InDelta(1, promtest.ToFloat64(s.metrics.ActiveFormSessions), 0)
}

func (s *SessionsSuite) TestRunStopsWithContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- s.hosts.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.FailNow("Run did not stop")
	}
}
