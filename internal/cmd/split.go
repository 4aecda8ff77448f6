package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazyvibe/vibeshell/internal/shell"
)

func newSplitCmd(o *rootOptions) *cobra.Command {
	var shellName string
	cmd := &cobra.Command{
		Use:   "split [flags] -- <command line>",
		Short: "Print the sub-commands and inline commands of a command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			d := o.dialectFor(shellName)
			out := cmd.OutOrStdout()

			for _, c := range shell.NonEmpty(shell.SplitCommandLine(line, d)) {
				fmt.Fprintf(out, "command: %s\n", c)
			}
			inline, err := shell.ExtractInlineCommands(line, d)
			for _, c := range inline {
				fmt.Fprintf(out, "inline: %s\n", c)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&shellName, "shell", "", "shell whose syntax applies (default: configured shell)")
	return cmd
}
