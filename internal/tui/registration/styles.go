package registration

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#8B5CF6")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#F8FAFC")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Width(14).
			Foreground(colorMuted)

	focusedLabelStyle = labelStyle.
				Foreground(colorPrimary).
				Bold(true)

	fieldErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			PaddingLeft(14)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Padding(0, 2).
			MarginTop(1)

	focusedButtonStyle = buttonStyle.
				Underline(true).
				Bold(true)

	disabledButtonStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2).
				MarginTop(1)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	submitErrorStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)
