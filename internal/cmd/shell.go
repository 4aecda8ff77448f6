package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/app"
	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/tool"
)

const replHelp = `Type a command line to run it in the session terminal.
  :bg <command>   start a background execution
  :out <id>       print the output of a background execution
  :list           list background executions
  :stop <id>      stop a background execution
  :quit           leave`

func newShellCmd(o *rootOptions) *cobra.Command {
	var (
		flags     sessionFlags
		sessionID string
		noWatch   bool
	)
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run command lines interactively in one session",
		Long: `Start an interactive loop that runs every entered line in the same session
terminal, so the working directory and shell state carry over.

` + replHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.openSession(flags)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if !noWatch {
				if w := s.watchRules(ctx, o.configPath); w != nil {
					defer w.Stop()
				}
			}
			confirm := confirmFunc(flags.yes, os.Stdin, cmd.ErrOrStderr())
			return repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), s.runner, sessionID, confirm)
		},
	}
	addSessionFlags(cmd, &flags)
	cmd.Flags().StringVarP(&sessionID, "session", "s", tool.DefaultSession, "session id")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload auto-approve rules when the config file changes")
	return cmd
}

// watchRules reloads the session's approval rules whenever the config file
// changes. It returns nil when watching is not possible.
func (s *session) watchRules(ctx context.Context, path string) *approval.Watcher {
	load := func() (approval.Config, error) {
		cfg, err := app.LoadConfigFile(path)
		if err != nil {
			return approval.Config{}, err
		}
		return cfg.AutoApprove, nil
	}
	w, err := approval.NewWatcher(path, s.engine, load, s.log.Named("watcher"))
	if err != nil {
		s.log.Warn("cannot watch config", zap.Error(err))
		return nil
	}
	if err := w.Start(ctx); err != nil {
		s.log.Warn("cannot watch config", zap.String("path", path), zap.Error(err))
		w.Stop()
		return nil
	}
	return w
}

func repl(ctx context.Context, in io.Reader, out, errOut io.Writer, r *tool.Runner, sessionID string, confirm tool.ConfirmFunc) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(errOut, "vibeshell> ")
		if !scanner.Scan() {
			fmt.Fprintln(errOut)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch name {
		case ":quit", ":exit":
			return nil
		case ":help":
			fmt.Fprintln(out, replHelp)
		case ":list":
			printBackground(out, r)
		case ":out":
			text, err := r.Output(arg)
			if err != nil {
				fmt.Fprintln(errOut, err)
				continue
			}
			fmt.Fprintln(out, text)
		case ":stop":
			if err := r.Stop(arg); err != nil {
				fmt.Fprintln(errOut, err)
			}
		case ":bg":
			runLine(ctx, out, errOut, r, tool.Invocation{SessionID: sessionID, CommandLine: arg, Background: true}, confirm)
		default:
			if strings.HasPrefix(name, ":") {
				fmt.Fprintf(errOut, "unknown command %s, try :help\n", name)
				continue
			}
			runLine(ctx, out, errOut, r, tool.Invocation{SessionID: sessionID, CommandLine: line}, confirm)
		}
	}
}

// runLine runs one invocation. An interrupt cancels only this command.
func runLine(ctx context.Context, out, errOut io.Writer, r *tool.Runner, inv tool.Invocation, confirm tool.ConfirmFunc) {
	if strings.TrimSpace(inv.CommandLine) == "" {
		fmt.Fprintln(errOut, "missing command")
		return
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	resp, err := r.Run(ctx, inv, confirm)
	switch {
	case errors.Is(err, tool.ErrDeclined):
		fmt.Fprintln(errOut, err)
		return
	case err != nil:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return
	}
	if resp.Rewritten != "" {
		fmt.Fprintf(errOut, "running: %s\n", resp.Rewritten)
	}
	if resp.Background {
		fmt.Fprintf(out, "started %s\n", resp.ExecutionID)
		return
	}
	fmt.Fprintln(out, resp.Result.Output)
	if resp.Result.Error != "" {
		fmt.Fprintln(errOut, resp.Result.Error)
	}
}

func printBackground(out io.Writer, r *tool.Runner) {
	list := r.List()
	if len(list) == 0 {
		fmt.Fprintln(out, "No background executions.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tEXIT\tAGE\tCOMMAND")
	for _, info := range list {
		status, exit := "running", "-"
		if info.Finished {
			status = "finished"
		}
		if info.ExitCode != nil {
			exit = fmt.Sprint(*info.ExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.ID, status, exit, time.Since(info.StartedAt).Round(time.Second), info.CommandLine)
	}
	w.Flush()
}
