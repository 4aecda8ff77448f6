package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazyvibe/vibeshell/internal/tool"
)

func addSessionFlags(cmd *cobra.Command, f *sessionFlags) {
	cmd.Flags().StringSliceVar(&f.roots, "root", nil, "workspace root (repeatable)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "starting directory of new terminals")
	cmd.Flags().StringArrayVarP(&f.env, "env", "e", nil, "extra environment variable NAME=VALUE (repeatable)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "run commands without asking for confirmation")
}

func newRunCmd(o *rootOptions) *cobra.Command {
	var (
		flags      sessionFlags
		sessionID  string
		background bool
		poll       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [flags] -- <command line>",
		Short: "Run one command line and print its output",
		Long: `Run one command line in a fresh terminal and print its output.

Commands outside the allow list ask for confirmation on an interactive
terminal and are declined otherwise, unless --yes is given. With --background
the command is started as a background execution and followed until it
finishes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			s, err := o.openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			inv := tool.Invocation{
				SessionID:   sessionID,
				CommandLine: strings.Join(args, " "),
				Background:  background,
			}
			resp, err := s.runner.Run(ctx, inv, confirmFunc(flags.yes, os.Stdin, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if resp.Rewritten != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "running: %s\n", resp.Rewritten)
			}
			if resp.Background {
				return followBackground(ctx, cmd, s, resp.ExecutionID, poll)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Result.Output)
			if resp.Result.Error != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), resp.Result.Error)
			}
			return exitCode(resp.Result.ExitCode)
		},
	}
	addSessionFlags(cmd, &flags)
	cmd.Flags().StringVarP(&sessionID, "session", "s", tool.DefaultSession, "session id")
	cmd.Flags().BoolVarP(&background, "background", "b", false, "start as a background execution")
	cmd.Flags().DurationVar(&poll, "poll", 500*time.Millisecond, "background output poll interval")
	return cmd
}

// followBackground prints new background output until the execution finishes.
func followBackground(ctx context.Context, cmd *cobra.Command, s *session, id string, poll time.Duration) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "background execution %s\n", id)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	prev := ""
	for {
		out, err := s.runner.Output(id)
		if err != nil {
			return err
		}
		// Output is re-sanitized on every read; only a grown prefix can be
		// printed incrementally.
		if strings.HasPrefix(out, prev) {
			fmt.Fprint(cmd.OutOrStdout(), out[len(prev):])
		}
		prev = out

		info, err := s.runner.Info(id)
		if err != nil {
			return err
		}
		if info.Finished {
			fmt.Fprintln(cmd.OutOrStdout())
			return exitCode(info.ExitCode)
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.OutOrStdout())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
