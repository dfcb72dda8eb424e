package output

import "github.com/charmbracelet/lipgloss"

// Color palette shared by every text report.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for headers such as the version line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SuccessStyle marks completed steps.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle marks the step that failed.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle marks non-fatal problems such as an unpersisted PATH.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// HintStyle is for the suggested next step under an error.
	HintStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// MutedStyle is for labels and secondary detail.
	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

const (
	okSymbol   = "✓"
	failSymbol = "✗"
	warnSymbol = "!"
)
