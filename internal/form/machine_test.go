package form

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"

	"regform/internal/registration/models"
	"regform/internal/validation"
	"regform/pkg/platform/sentinel"
)

type MachineSuite struct {
	suite.Suite
	now time.Time
	m   *Machine
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	s.m = New(WithClock(func() time.Time { return s.now }))
}

func (s *MachineSuite) fill(values map[validation.Field]string) {
	for f, v := range values {
		s.Require().NoError(s.m.Change(f, v))
	}
}

func (s *MachineSuite) validValues() map[validation.Field]string {
	return map[validation.Field]string{
		validation.FirstName:  "Jean",
		validation.LastName:   "Dupont",
		validation.Email:      "jean.dupont@example.com",
		validation.BirthDate:  s.now.AddDate(-20, 0, 0).Format(validation.DateLayout),
		validation.City:       "Paris",
		validation.PostalCode: "75001",
	}
}

func (s *MachineSuite) TestInitialState() {
	st := s.m.Snapshot()
	s.Equal(Editing, st.Phase)
	s.Len(st.Values, len(validation.Fields))
	for _, f := range validation.Fields {
		s.Empty(st.Values[f])
	}
	s.Empty(st.Errors)
	s.Empty(st.SuccessMessage)
	s.Empty(st.SubmitError)
	s.False(st.SubmitEnabled)
}

func (s *MachineSuite) TestChange() {
	s.Run("unknown field is refused", func() {
		s.ErrorIs(s.m.Change(validation.Field("nickname"), "x"), ErrUnknownField)
	})

	s.Run("clears the field error but not others", func() {
		s.Require().NoError(s.m.Blur(validation.FirstName))
		s.Require().NoError(s.m.Blur(validation.City))
		_, hasFirst := s.m.FieldError(validation.FirstName)
		s.Require().True(hasFirst)

		s.Require().NoError(s.m.Change(validation.FirstName, "J"))
		_, hasFirst = s.m.FieldError(validation.FirstName)
		_, hasCity := s.m.FieldError(validation.City)
		s.False(hasFirst)
		s.True(hasCity)
	})
}

func (s *MachineSuite) TestBlur() {
	s.Run("failing field shows its error", func() {
		s.Require().NoError(s.m.Change(validation.PostalCode, "33A00"))
		s.Require().NoError(s.m.Blur(validation.PostalCode))
		out, ok := s.m.FieldError(validation.PostalCode)
		s.Require().True(ok)
		s.Equal(validation.CodeInvalidFormat, out.Code())
		s.Equal("code must be 5 digits", out.Message())
	})

	s.Run("a new failure replaces the previous one", func() {
		s.Require().NoError(s.m.Change(validation.PostalCode, ""))
		s.Require().NoError(s.m.Blur(validation.PostalCode))
		out, _ := s.m.FieldError(validation.PostalCode)
		s.Equal(validation.CodeMissingCode, out.Code())
	})

	s.Run("passing field has no error", func() {
		s.Require().NoError(s.m.Change(validation.PostalCode, "33000"))
		s.Require().NoError(s.m.Blur(validation.PostalCode))
		_, ok := s.m.FieldError(validation.PostalCode)
		s.False(ok)
	})

	s.Run("birth date uses the age rule", func() {
		s.Require().NoError(s.m.Change(validation.BirthDate, s.now.AddDate(-18, 0, 1).Format(validation.DateLayout)))
		s.Require().NoError(s.m.Blur(validation.BirthDate))
		out, ok := s.m.FieldError(validation.BirthDate)
		s.Require().True(ok)
		s.Equal(validation.CodeMinor, out.Code())

		s.Require().NoError(s.m.Change(validation.BirthDate, s.now.AddDate(-18, 0, 0).Format(validation.DateLayout)))
		s.Require().NoError(s.m.Blur(validation.BirthDate))
		_, ok = s.m.FieldError(validation.BirthDate)
		s.False(ok)
	})
}

func (s *MachineSuite) TestBlurTwiceIsIdempotent() {
	s.fill(map[validation.Field]string{validation.FirstName: "Jean", validation.Email: "test.com"})
	s.Require().NoError(s.m.Blur(validation.Email))

	s.Require().NoError(s.m.Blur(validation.FirstName))
	first := s.m.Snapshot()
	s.Require().NoError(s.m.Blur(validation.FirstName))
	second := s.m.Snapshot()

	if diff := cmp.Diff(first, second, cmp.AllowUnexported(validation.Outcome{})); diff != "" {
		s.Failf("state changed on second blur", "(-first +second):\n%s", diff)
	}
	s.Len(second.Errors, 1)
}

func (s *MachineSuite) TestSubmitInvalid() {
	s.fill(s.validValues())
	s.Require().NoError(s.m.Change(validation.Email, "invalid-email"))

	s.False(s.m.SubmitEnabled())

	_, err := s.m.Submit()
	s.ErrorIs(err, ErrInvalid)

	st := s.m.Snapshot()
	s.Equal(Editing, st.Phase)
	s.Equal(map[validation.Field]validation.Code{validation.Email: validation.CodeInvalidFormat}, codes(st))
	s.Equal("email is invalid", st.ErrorMessage(validation.Email))
	s.Equal("invalid-email", st.Values[validation.Email])
}

func (s *MachineSuite) TestSubmitEmptyShowsEveryError() {
	_, err := s.m.Submit()
	s.ErrorIs(err, ErrInvalid)
	s.Len(s.m.Snapshot().Errors, len(validation.Fields))
}

func (s *MachineSuite) TestSubmitValidThenSuccess() {
	values := s.validValues()
	s.fill(values)
	s.True(s.m.SubmitEnabled())

	sub, err := s.m.Submit()
	s.Require().NoError(err)
	s.Equal(Submitting, s.m.Phase())
	s.Equal("Jean", sub.Registration.FirstName)
	s.Equal(values[validation.BirthDate], sub.Registration.BirthDate.String())
	s.True(sub.Registration.Timestamp.Equal(s.now))

	saved := sub.Registration
	saved.ID = "reg-1"
	s.True(s.m.Complete(sub.Token, saved, nil))

	st := s.m.Snapshot()
	s.Equal(Editing, st.Phase)
	s.Equal(SuccessMessage, st.SuccessMessage)
	s.Equal("Registration successful!", st.SuccessMessage)
	s.Empty(st.Errors)
	s.Empty(st.SubmitError)
	for _, f := range validation.Fields {
		s.Empty(st.Values[f], "field %s not reset", f)
	}
	s.Require().NotNil(st.Saved)
	s.Equal("reg-1", st.Saved.ID)
	s.False(st.SubmitEnabled)
}

func (s *MachineSuite) TestSubmitFailureKeepsDraft() {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("insert: %w", sentinel.ErrConflict), "Email already exists"},
		{fmt.Errorf("post: %w", sentinel.ErrUnavailable), "Server is down. Please try again later."},
		{errors.New("connection reset by peer"), "Failed to save user to API"},
	}
	for _, tc := range cases {
		s.Run(tc.want, func() {
			m := New(WithClock(func() time.Time { return s.now }))
			for f, v := range s.validValues() {
				s.Require().NoError(m.Change(f, v))
			}
			sub, err := m.Submit()
			s.Require().NoError(err)

			s.True(m.Complete(sub.Token, models.Registration{}, tc.err))
			st := m.Snapshot()
			s.Equal(tc.want, st.SubmitError)
			s.Empty(st.SuccessMessage)
			s.Equal(Editing, st.Phase)
			s.Equal("Jean", st.Values[validation.FirstName])
			s.True(st.SubmitEnabled)

			s.Require().NoError(m.Change(validation.Email, "jean.d@example.com"))
			s.Empty(m.SubmitError())
		})
	}
}

func (s *MachineSuite) TestDoubleSubmitIsRejected() {
	s.fill(s.validValues())
	first, err := s.m.Submit()
	s.Require().NoError(err)

	_, err = s.m.Submit()
	s.ErrorIs(err, ErrInFlight)

	s.Require().NoError(s.m.Change(validation.City, "Paris75"))
	_, err = s.m.Submit()
	s.ErrorIs(err, ErrInvalid, "validation still runs first while submitting")

	s.True(s.m.Complete(first.Token, first.Registration, nil))
}

func (s *MachineSuite) TestChangeWhileSubmitting() {
	s.fill(s.validValues())
	sub, err := s.m.Submit()
	s.Require().NoError(err)

	s.Require().NoError(s.m.Change(validation.City, "Lyon"))
	s.Equal(Submitting, s.m.Phase())
	s.Equal("Lyon", s.m.Value(validation.City))

	s.True(s.m.Complete(sub.Token, sub.Registration, nil))
	s.Empty(s.m.Value(validation.City))
}

func (s *MachineSuite) TestSuccessMessageClearedOnChange() {
	s.fill(s.validValues())
	sub, err := s.m.Submit()
	s.Require().NoError(err)
	s.Require().True(s.m.Complete(sub.Token, sub.Registration, nil))
	s.Require().Equal(SuccessMessage, s.m.SuccessMessage())

	s.Require().NoError(s.m.Change(validation.FirstName, "P"))
	s.Empty(s.m.SuccessMessage())
	s.Nil(s.m.Snapshot().Saved)
}

func (s *MachineSuite) TestStaleAndClosedCompletionsAreDiscarded() {
	s.fill(s.validValues())
	sub, err := s.m.Submit()
	s.Require().NoError(err)

	s.False(s.m.Complete(sub.Token+1, sub.Registration, nil), "unknown token")
	s.Equal(Submitting, s.m.Phase())

	s.m.Close()
	before := s.m.Snapshot()
	s.False(s.m.Complete(sub.Token, sub.Registration, nil))
	after := s.m.Snapshot()
	if diff := cmp.Diff(before, after, cmp.AllowUnexported(validation.Outcome{})); diff != "" {
		s.Failf("closed form mutated", "(-before +after):\n%s", diff)
	}

	s.ErrorIs(s.m.Change(validation.City, "Lyon"), ErrClosed)
	s.ErrorIs(s.m.Blur(validation.City), ErrClosed)
	_, err = s.m.Submit()
	s.ErrorIs(err, ErrClosed)
}

func (s *MachineSuite) TestCompleteTwiceIsDiscarded() {
	s.fill(s.validValues())
	sub, err := s.m.Submit()
	s.Require().NoError(err)
	s.True(s.m.Complete(sub.Token, sub.Registration, nil))
	s.False(s.m.Complete(sub.Token, sub.Registration, errors.New("late")))
	s.Empty(s.m.SubmitError())
}

func (s *MachineSuite) TestSubmitEnabledTracksAggregator() {
	drafts := []map[validation.Field]string{
		{},
		s.validValues(),
		{validation.FirstName: "Jean", validation.LastName: "Dupont"},
	}
	for i, values := range drafts {
		m := New(WithClock(func() time.Time { return s.now }))
		for f, v := range values {
			s.Require().NoError(m.Change(f, v))
		}
		want := validation.ValidateForm(validation.DraftOf(m.Snapshot().Values), s.now).Valid()
		s.Equal(want, m.SubmitEnabled(), "draft %d", i)
	}
}

func (s *MachineSuite) TestRejectHook() {
	var seen []validation.Field
	m := New(
		WithClock(func() time.Time { return s.now }),
		WithRejectHook(func(f validation.Field, _ validation.Outcome) { seen = append(seen, f) }),
	)
	s.Require().NoError(m.Blur(validation.Email))
	s.Equal([]validation.Field{validation.Email}, seen)
}

func codes(st State) map[validation.Field]validation.Code {
	out := make(map[validation.Field]validation.Code, len(st.Errors))
	for f, o := range st.Errors {
		out[f] = o.Code()
	}
	return out
}
