// Package keys defines keyboard shortcuts for the vibeshell prompts.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the confirmation dialog shortcuts.
type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Enter   key.Binding
	Approve key.Binding
	Deny    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keyboard shortcuts.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "h", "shift+tab"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l", "tab"),
			key.WithHelp("→/l", "right"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choose"),
		),
		Approve: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "run"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc", "q"),
			key.WithHelp("n/esc", "skip"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "abort"),
		),
	}
}

// ShortHelp returns short help text for the help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Deny, k.Enter, k.Quit}
}

// FullHelp returns complete help text.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Enter},
		{k.Approve, k.Deny, k.Quit},
	}
}
