package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/shell"
	"github.com/lazyvibe/vibeshell/internal/ui/styles"
)

// dialectFor classifies name, falling back to the configured shell.
func (o *rootOptions) dialectFor(name string) shell.Dialect {
	if name == "" {
		name = o.cfg.Shell
	}
	return shell.ClassifyShell(name)
}

func newCheckCmd(o *rootOptions) *cobra.Command {
	var shellName string
	cmd := &cobra.Command{
		Use:   "check [flags] -- <command line>",
		Short: "Show whether a command line would be auto-approved",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := approval.NewEngine(o.cfg.AutoApprove, o.log.Named("approval"))
			if err != nil {
				return err
			}
			line := strings.Join(args, " ")
			d := o.dialectFor(shellName)
			printDecision(cmd.OutOrStdout(), d, engine.Evaluate(line, d))
			return nil
		},
	}
	cmd.Flags().StringVar(&shellName, "shell", "", "shell whose syntax applies (default: configured shell)")
	return cmd
}

func printDecision(w io.Writer, d shell.Dialect, dec approval.Decision) {
	verdict := styles.VerdictApproved.Render(styles.IconSuccess + " auto-approved")
	if !dec.AutoApproved {
		verdict = styles.VerdictUnknown.Render(styles.IconUnknown + " needs confirmation")
	}
	fmt.Fprintf(w, "%s (%s)\n", verdict, d)

	denied := make(map[string]bool, len(dec.Denied))
	for _, c := range dec.Denied {
		denied[c] = true
	}
	unapproved := make(map[string]bool, len(dec.Unapproved))
	for _, c := range dec.Unapproved {
		unapproved[c] = true
	}
	mark := func(c string) string {
		switch {
		case denied[c]:
			return styles.VerdictDenied.Render(styles.IconError + " " + c)
		case unapproved[c]:
			return styles.VerdictUnknown.Render(styles.IconUnknown + " " + c)
		default:
			return styles.VerdictApproved.Render(styles.IconSuccess + " " + c)
		}
	}
	for _, c := range dec.SubCommands {
		fmt.Fprintf(w, "  %s\n", mark(c))
	}
	for _, c := range dec.InlineCommands {
		fmt.Fprintf(w, "  %s %s\n", styles.Dim.Render("inline"), mark(c))
	}
	if dec.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", dec.Reason)
	}
}
