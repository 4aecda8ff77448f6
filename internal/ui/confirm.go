// Package ui renders the confirmation prompt shown before a command that is
// not auto-approved runs.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/shell"
	"github.com/lazyvibe/vibeshell/internal/ui/keys"
	"github.com/lazyvibe/vibeshell/internal/ui/styles"
)

// ErrAborted is returned when the user aborts with ctrl+c.
var ErrAborted = errors.New("confirmation aborted")

// Request describes the command awaiting confirmation.
type Request struct {
	CommandLine string
	Dialect     shell.Dialect
	Decision    approval.Decision
	Background  bool
}

// Outcome is the user's answer.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeApproved
	OutcomeDenied
	OutcomeAborted
)

const (
	buttonRun = iota
	buttonSkip
)

// ConfirmModel is the bubbletea model of the confirmation dialog.
type ConfirmModel struct {
	req     Request
	keys    keys.KeyMap
	help    help.Model
	cursor  int
	outcome Outcome
	width   int
}

// NewConfirm creates the dialog with "skip" preselected.
func NewConfirm(req Request) ConfirmModel {
	return ConfirmModel{
		req:    req,
		keys:   keys.DefaultKeyMap(),
		help:   help.New(),
		cursor: buttonSkip,
	}
}

// Outcome returns the answer given so far.
func (m ConfirmModel) Outcome() Outcome {
	return m.outcome
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.outcome = OutcomeAborted
			return m, tea.Quit
		case key.Matches(msg, m.keys.Approve):
			m.outcome = OutcomeApproved
			return m, tea.Quit
		case key.Matches(msg, m.keys.Deny):
			m.outcome = OutcomeDenied
			return m, tea.Quit
		case key.Matches(msg, m.keys.Left):
			m.cursor = buttonRun
		case key.Matches(msg, m.keys.Right):
			m.cursor = buttonSkip
		case key.Matches(msg, m.keys.Enter):
			if m.cursor == buttonRun {
				m.outcome = OutcomeApproved
			} else {
				m.outcome = OutcomeDenied
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m ConfirmModel) View() string {
	if m.outcome != OutcomePending {
		return ""
	}
	maxWidth := 100
	if m.width > 8 && m.width-8 < maxWidth {
		maxWidth = m.width - 8
	}

	var b strings.Builder
	title := "Run this command?"
	if m.req.Background {
		title = "Run this command in the background?"
	}
	b.WriteString(styles.DialogTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(styles.DialogCommand.Render(styles.TruncateWithEllipsis(m.req.CommandLine, maxWidth)))
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render("shell: " + m.req.Dialect.String()))
	b.WriteString("\n\n")

	for _, line := range verdictLines(m.req.Decision, maxWidth) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.req.Decision.Reason != "" {
		b.WriteString("\n")
		b.WriteString(styles.DialogReason.Render(m.req.Decision.Reason))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	run, skip := styles.DialogButton, styles.DialogButton
	if m.cursor == buttonRun {
		run = styles.DialogButtonActive
	} else {
		skip = styles.DialogButtonActive
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, run.Render("Run"), skip.Render("Skip")))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))

	return styles.DialogBox.Render(b.String()) + "\n"
}

// verdictLines lists every inspected part with its verdict.
func verdictLines(dec approval.Decision, width int) []string {
	denied := make(map[string]bool, len(dec.Denied))
	for _, d := range dec.Denied {
		denied[d] = true
	}
	unapproved := make(map[string]bool, len(dec.Unapproved))
	for _, u := range dec.Unapproved {
		unapproved[u] = true
	}

	parts := append(append([]string(nil), dec.SubCommands...), dec.InlineCommands...)
	lines := make([]string, 0, len(parts))
	for i, p := range parts {
		label := styles.TruncateWithEllipsis(p, width-4)
		if i >= len(dec.SubCommands) {
			label = "$(" + label + ")"
		}
		switch {
		case denied[p]:
			lines = append(lines, styles.VerdictDenied.Render(styles.IconError+" "+label))
		case unapproved[p]:
			lines = append(lines, styles.VerdictUnknown.Render(styles.IconUnknown+" "+label))
		default:
			lines = append(lines, styles.VerdictApproved.Render(styles.IconSuccess+" "+label))
		}
	}
	return lines
}

// Confirm shows the dialog on in/out and reports whether the user approved.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, req Request) (bool, error) {
	p := tea.NewProgram(NewConfirm(req),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("confirmation dialog: %w", err)
	}
	m, ok := final.(ConfirmModel)
	if !ok {
		return false, errors.New("confirmation dialog returned an unexpected model")
	}
	switch m.Outcome() {
	case OutcomeApproved:
		return true, nil
	case OutcomeAborted:
		return false, ErrAborted
	default:
		return false, nil
	}
}
