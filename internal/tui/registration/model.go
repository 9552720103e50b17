// Package registration is the terminal registration form. It drives a
// form.Machine from key events: leaving a field blurs it, typing changes
// it, and the submit button saves through a form.Saver in the background.
package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"regform/internal/form"
	"regform/internal/validation"
)

// Model is the bubbletea model for the registration form.
type Model struct {
	ctx     context.Context
	saver   form.Saver
	machine *form.Machine

	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	saving   bool
	token    uint64
	quitting bool
	err      error
}

// Option configures a Model.
type Option func(*config)

type config struct {
	clock func() time.Time
}

// WithClock fixes the time used for age checks and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// New builds a form that saves through saver.
func New(ctx context.Context, saver form.Saver, opts ...Option) Model {
	cfg := config{clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	inputs := make([]textinput.Model, len(validation.Fields))
	for i, field := range validation.Fields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 64
		in.Width = 32
		switch field {
		case validation.BirthDate:
			in.Placeholder = "YYYY-MM-DD"
			in.CharLimit = len(validation.DateLayout)
		case validation.PostalCode:
			in.Placeholder = "5 digits"
			in.CharLimit = 5
		case validation.Email:
			in.Placeholder = "name@example.com"
		}
		inputs[i] = in
	}
	inputs[0].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		ctx:     ctx,
		saver:   saver,
		machine: form.New(form.WithClock(cfg.clock)),
		inputs:  inputs,
		spinner: sp,
	}
}

// Run shows the form until the user quits. It returns the error that
// stopped the form, if any.
func Run(ctx context.Context, saver form.Saver, opts ...Option) error {
	final, err := tea.NewProgram(New(ctx, saver, opts...), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}

// Err reports why the form stopped on its own.
func (m Model) Err() error {
	return m.err
}

// fail stops the form when the machine refuses an event.
func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	m.machine.Close()
	m.err = fmt.Errorf("registration form: %w", err)
	m.quitting = true
	return m, tea.Quit
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.saving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case savedMsg:
		if !m.machine.Complete(msg.token, msg.saved, msg.err) {
			return m, nil
		}
		m.saving = false
		m.syncInputs()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.machine.Close()
		m.quitting = true
		return m, tea.Quit
	case "tab", "down":
		return m.moveFocus(1)
	case "shift+tab", "up":
		return m.moveFocus(-1)
	case "enter":
		if m.onSubmit() {
			return m.submit()
		}
		return m.moveFocus(1)
	}

	if m.onSubmit() {
		return m, nil
	}
	field := validation.Fields[m.focus]
	before := m.inputs[m.focus].Value()
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if after := m.inputs[m.focus].Value(); after != before {
		if err := m.machine.Change(field, after); err != nil {
			return m.fail(err)
		}
	}
	return m, cmd
}

// moveFocus blurs the field being left and focuses the next stop. The
// submit button is the last stop.
func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	stops := len(m.inputs) + 1
	if !m.onSubmit() {
		if err := m.leaveField(); err != nil {
			return m.fail(err)
		}
	}
	m.focus = (m.focus + delta + stops) % stops

	var cmd tea.Cmd
	if !m.onSubmit() {
		cmd = m.inputs[m.focus].Focus()
	}
	return m, cmd
}

func (m *Model) leaveField() error {
	field := validation.Fields[m.focus]
	in := &m.inputs[m.focus]
	if field == validation.BirthDate {
		if clamped := clampBirthDate(in.Value()); clamped != in.Value() {
			in.SetValue(clamped)
			if err := m.machine.Change(field, clamped); err != nil {
				return err
			}
		}
	}
	in.Blur()
	return m.machine.Blur(field)
}

// clampBirthDate raises dates before the earliest accepted birth date to
// that bound. Anything that does not parse is left for the field rule.
func clampBirthDate(value string) string {
	d, err := validation.ParseDate(strings.TrimSpace(value))
	if err != nil || !d.Before(validation.EarliestBirthDate) {
		return value
	}
	return validation.EarliestBirthDate.String()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.machine.SubmitEnabled() {
		return m, nil
	}
	sub, err := m.machine.Submit()
	if err != nil {
		return m, nil
	}
	m.saving = true
	m.token = sub.Token
	return m, tea.Batch(m.spinner.Tick, m.saveCmd(sub))
}

func (m Model) saveCmd(sub form.Submission) tea.Cmd {
	ctx, saver := m.ctx, m.saver
	return func() tea.Msg {
		saved, err := saver.Save(ctx, sub.Registration)
		return savedMsg{token: sub.Token, saved: saved, err: err}
	}
}

// syncInputs copies the machine's values into the inputs after a reset.
func (m *Model) syncInputs() {
	for i, field := range validation.Fields {
		if v := m.machine.Value(field); v != m.inputs[i].Value() {
			m.inputs[i].SetValue(v)
		}
	}
}

func (m Model) onSubmit() bool {
	return m.focus == len(m.inputs)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.machine.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Registration"))
	b.WriteString("\n")

	for i, field := range validation.Fields {
		label := labelStyle
		if i == m.focus {
			label = focusedLabelStyle
		}
		b.WriteString(label.Render(field.Label()))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
		if msg := st.ErrorMessage(field); msg != "" {
			b.WriteString(fieldErrorStyle.Render(msg))
			b.WriteString("\n")
		}
	}

	button := disabledButtonStyle
	switch {
	case st.SubmitEnabled && m.onSubmit():
		button = focusedButtonStyle
	case st.SubmitEnabled:
		button = buttonStyle
	}
	b.WriteString(button.Render("Submit"))
	if m.saving {
		b.WriteString(" " + m.spinner.View() + " Saving...")
	}
	b.WriteString("\n")

	if st.SuccessMessage != "" {
		b.WriteString("\n" + successStyle.Render(st.SuccessMessage) + "\n")
	}
	if st.SubmitError != "" {
		b.WriteString("\n" + submitErrorStyle.Render(st.SubmitError) + "\n")
	}

	b.WriteString(helpStyle.Render("tab/shift+tab move • enter next/submit • esc quit"))
	b.WriteString("\n")
	return b.String()
}
