// Package styles defines the visual appearance of the vibeshell prompts.
// Using Catppuccin Mocha color palette.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha color palette
var (
	Mauve    = lipgloss.Color("#CBA6F7")
	Red      = lipgloss.Color("#F38BA8")
	Peach    = lipgloss.Color("#FAB387")
	Yellow   = lipgloss.Color("#F9E2AF")
	Green    = lipgloss.Color("#A6E3A1")
	Sapphire = lipgloss.Color("#74C7EC")
	Blue     = lipgloss.Color("#89B4FA")

	Text     = lipgloss.Color("#CDD6F4")
	Subtext0 = lipgloss.Color("#A6ADC8")
	Overlay0 = lipgloss.Color("#6C7086")
	Surface1 = lipgloss.Color("#45475A")
	Surface0 = lipgloss.Color("#313244")
)

// Semantic colors (using the palette)
var (
	Primary    = Mauve
	Accent     = Sapphire
	Danger     = Red
	Warning    = Peach
	Success    = Green
	Info       = Blue
	Muted      = Overlay0
	SurfaceCol = Surface0
	TextCol    = Text
	TextMuted  = Subtext0
	Border     = Surface1
)

// Dialog styles
var (
	DialogBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	DialogTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextCol).
			MarginBottom(1)

	DialogCommand = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	DialogReason = lipgloss.NewStyle().
			Foreground(Warning).
			Italic(true)

	DialogButton = lipgloss.NewStyle().
			Foreground(TextCol).
			Background(SurfaceCol).
			Padding(0, 2).
			MarginRight(1)

	DialogButtonActive = lipgloss.NewStyle().
				Foreground(TextCol).
				Background(Primary).
				Bold(true).
				Padding(0, 2).
				MarginRight(1)
)

// Sub-command verdict styles
var (
	VerdictApproved = lipgloss.NewStyle().
			Foreground(Success)

	VerdictDenied = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	VerdictUnknown = lipgloss.NewStyle().
			Foreground(Warning)

	Dim = lipgloss.NewStyle().
		Foreground(TextMuted)
)

// Icons
var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconUnknown = "?"
)

// TruncateWithEllipsis truncates a string to maxLen with ellipsis.
func TruncateWithEllipsis(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
