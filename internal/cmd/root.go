// Package cmd implements the vibeshell command line.
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/app"
	"github.com/lazyvibe/vibeshell/internal/logging"
	"github.com/lazyvibe/vibeshell/pkg/utils"
)

// Version is set at build time via -ldflags "-X .../internal/cmd.Version=v1.0.0".
var Version = "dev"

// ExitError reports the non-zero exit code of the command that ran.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

type rootOptions struct {
	configPath string
	verbose    bool

	cfg *app.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{log: zap.NewNop()}
	cmd := &cobra.Command{
		Use:   "vibeshell",
		Short: "Run shell commands for an agent inside a real terminal",
		Long: `vibeshell runs command lines inside a hidden interactive shell and recovers
their output and exit code.

Commands covered by the auto-approve allow list run immediately; anything else
asks for confirmation first. Shell integration markers are used when the shell
emits them, with screen-scraping fallbacks when it does not.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = o.log.Sync()
		},
	}
	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/vibeshell/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newRunCmd(o),
		newCheckCmd(o),
		newSplitCmd(o),
		newShellCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and returns any error.
func Execute() error {
	return newRootCmd().Execute()
}

func (o *rootOptions) init() error {
	path := o.configPath
	if path == "" {
		dir, err := app.ConfigDir()
		if err != nil {
			return fmt.Errorf("locate config directory: %w", err)
		}
		path = app.ConfigPath(dir)
	}
	o.configPath = utils.ExpandPath(path)

	cfg, err := app.LoadConfigFile(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = log
	o.log.Debug("config loaded", zap.String("path", o.configPath), zap.String("shell", cfg.Shell))
	return nil
}

// exitCode turns a non-zero exit code into an ExitError.
func exitCode(code *int) error {
	if code == nil || *code == 0 {
		return nil
	}
	return &ExitError{Code: *code}
}

// IsExitError reports whether err carries a command exit code.
func IsExitError(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	return 0, false
}
