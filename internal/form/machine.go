// Package form implements the registration form interaction state machine
// and the server-side host that keeps one machine per form session.
//
// A Machine is not safe for concurrent use. Each event (change, blur,
// submit, completion) must be applied to completion before the next one;
// Sessions serializes events per session, the terminal form relies on the
// bubbletea update loop.
package form

import (
	"context"
	"errors"
	"maps"
	"time"

	"regform/internal/registration/models"
	"regform/internal/validation"
)

// SuccessMessage is shown after a registration is saved.
const SuccessMessage = "Registration successful!"

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrInvalid      = errors.New("form has invalid fields")
	ErrInFlight     = errors.New("a submission is already in progress")
	ErrClosed       = errors.New("form is closed")
)

// Saver persists an accepted registration. Implementations may assign an ID
// and return it on the saved record. Errors are classified with
// models.Classify.
type Saver interface {
	Save(ctx context.Context, reg models.Registration) (models.Registration, error)
}

// Phase is the coarse state of a form.
type Phase int

const (
	Editing Phase = iota
	Submitting
)

func (p Phase) String() string {
	if p == Submitting {
		return "submitting"
	}
	return "editing"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Submission is a validated registration waiting to be persisted. Its
// Token identifies the attempt when the outcome is reported via Complete.
type Submission struct {
	Token        uint64
	Registration models.Registration
}

// Machine tracks the draft values, field errors, and submit messages of one
// form.
type Machine struct {
	clock func() time.Time

	phase     Phase
	values    map[validation.Field]string
	errors    validation.ErrorMap
	success   string
	submitErr string
	saved     *models.Registration

	seq     uint64
	pending uint64
	closed  bool

	onReject func(field validation.Field, out validation.Outcome)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source used for the age rule and submission
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		m.clock = clock
	}
}

// WithRejectHook is called every time a field error is set.
func WithRejectHook(fn func(field validation.Field, out validation.Outcome)) Option {
	return func(m *Machine) {
		m.onReject = fn
	}
}

// New creates an empty form in the Editing phase.
func New(opts ...Option) *Machine {
	m := &Machine{
		clock:  time.Now,
		values: emptyValues(),
		errors: validation.ErrorMap{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func emptyValues() map[validation.Field]string {
	values := make(map[validation.Field]string, len(validation.Fields))
	for _, f := range validation.Fields {
		values[f] = ""
	}
	return values
}

// Change records a new value for field. The field's error, the success
// message and the submit error are cleared. Changes are accepted while a
// submission is in flight.
func (m *Machine) Change(field validation.Field, value string) error {
	if m.closed {
		return ErrClosed
	}
	if !field.Known() {
		return ErrUnknownField
	}
	m.values[field] = value
	delete(m.errors, field)
	m.success = ""
	m.submitErr = ""
	m.saved = nil
	return nil
}

// Blur runs the rule of field on its current value. A failure replaces the
// field's error, a pass removes it. Other fields are untouched.
func (m *Machine) Blur(field validation.Field) error {
	if m.closed {
		return ErrClosed
	}
	if !field.Known() {
		return ErrUnknownField
	}
	out := validation.ValidateField(field, m.values[field], m.clock())
	if out.IsValid() {
		delete(m.errors, field)
		return nil
	}
	m.setError(field, out)
	return nil
}

// Submit validates the whole draft. An invalid draft fills the error map,
// clears the success message and returns ErrInvalid. A valid draft moves
// the form to Submitting and returns the registration to persist; the caller
// reports the outcome with Complete. While one submission is outstanding a
// further valid submit returns ErrInFlight.
func (m *Machine) Submit() (Submission, error) {
	if m.closed {
		return Submission{}, ErrClosed
	}

	now := m.clock()
	res := validation.ValidateForm(validation.DraftOf(m.values), now)
	if !res.Valid() {
		m.errors = validation.ErrorMap{}
		for f, out := range res.Errors {
			m.setError(f, out)
		}
		m.success = ""
		m.saved = nil
		return Submission{}, ErrInvalid
	}

	if m.phase == Submitting {
		return Submission{}, ErrInFlight
	}

	person, err := models.PersonFromValues(m.values)
	if err != nil {
		return Submission{}, err
	}

	m.seq++
	m.pending = m.seq
	m.phase = Submitting
	m.errors = validation.ErrorMap{}
	m.submitErr = ""
	return Submission{Token: m.pending, Registration: models.NewRegistration(person, now)}, nil
}

// Complete applies the outcome of the submission identified by token. On
// success the form shows SuccessMessage and every field is reset; on
// failure the classified submit error is shown and the draft is kept.
// Outcomes for a closed form or a stale token are discarded and Complete
// reports false.
func (m *Machine) Complete(token uint64, saved models.Registration, err error) bool {
	if m.closed || m.phase != Submitting || token != m.pending {
		return false
	}
	m.phase = Editing
	m.pending = 0

	if err != nil {
		m.submitErr = models.Classify(err).Message()
		m.success = ""
		return true
	}

	m.success = SuccessMessage
	m.submitErr = ""
	m.errors = validation.ErrorMap{}
	m.values = emptyValues()
	m.saved = &saved
	return true
}

// SubmitEnabled reports whether the current draft passes every rule.
func (m *Machine) SubmitEnabled() bool {
	return validation.ValidateForm(validation.DraftOf(m.values), m.clock()).Valid()
}

// Close tears the form down. Later events fail with ErrClosed and pending
// completions are discarded.
func (m *Machine) Close() {
	m.closed = true
	m.pending = 0
}

func (m *Machine) Closed() bool {
	return m.closed
}

func (m *Machine) Phase() Phase {
	return m.phase
}

func (m *Machine) Value(field validation.Field) string {
	return m.values[field]
}

// FieldError returns the displayed error of field, if any.
func (m *Machine) FieldError(field validation.Field) (validation.Outcome, bool) {
	out, ok := m.errors[field]
	return out, ok
}

func (m *Machine) SuccessMessage() string {
	return m.success
}

func (m *Machine) SubmitError() string {
	return m.submitErr
}

// Snapshot copies the observable state of the form.
func (m *Machine) Snapshot() State {
	st := State{
		Phase:          m.phase,
		Values:         maps.Clone(m.values),
		Errors:         maps.Clone(m.errors),
		SuccessMessage: m.success,
		SubmitError:    m.submitErr,
		SubmitEnabled:  m.SubmitEnabled(),
	}
	if m.saved != nil {
		saved := *m.saved
		st.Saved = &saved
	}
	return st
}

func (m *Machine) setError(field validation.Field, out validation.Outcome) {
	m.errors[field] = out
	if m.onReject != nil {
		m.onReject(field, out)
	}
}
