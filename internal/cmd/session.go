package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/app"
	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/notify"
	"github.com/lazyvibe/vibeshell/internal/runtime"
	"github.com/lazyvibe/vibeshell/internal/runtime/driver"
	"github.com/lazyvibe/vibeshell/internal/tool"
	"github.com/lazyvibe/vibeshell/internal/ui"
	"github.com/lazyvibe/vibeshell/pkg/utils"
)

// sessionFlags are shared by the commands that execute command lines.
type sessionFlags struct {
	roots []string
	dir   string
	env   []string
	yes   bool
}

// session wires one runner to its terminals, approval rules and notifier.
type session struct {
	cfg      *app.Config
	log      *zap.Logger
	engine   *approval.Engine
	runner   *tool.Runner
	notifier *notify.Dispatcher
}

func (o *rootOptions) openSession(f sessionFlags) (*session, error) {
	cfg := o.cfg
	for _, r := range f.roots {
		dir, err := utils.ResolveDir(r)
		if err != nil {
			return nil, fmt.Errorf("workspace root: %w", err)
		}
		cfg.AddWorkspaceRoot(dir)
	}
	cfg.WorkspaceRoots = utils.Dedupe(cfg.WorkspaceRoots)

	dir := ""
	switch {
	case f.dir != "":
		d, err := utils.ResolveDir(f.dir)
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		dir = d
	case len(cfg.WorkspaceRoots) == 1:
		dir = cfg.WorkspaceRoots[0]
	}

	env, err := utils.ParseEnv(f.env)
	if err != nil {
		return nil, err
	}

	engine, err := approval.NewEngine(cfg.AutoApprove, o.log.Named("approval"))
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		log:      o.log,
		engine:   engine,
		notifier: notify.NewDispatcher(o.log.Named("notify")),
	}

	factory := &runtime.PTYFactory{
		Shell:       cfg.Shell,
		Integration: cfg.ShellIntegration,
		Drivers:     driver.NewRegistry(),
		Log:         o.log.Named("pty"),
	}
	regOpts := tool.RegistryOptions(cfg.Timeouts, dir)
	regOpts.Env = env
	regOpts.AlwaysDetect = cfg.ShellIntegration
	registry := runtime.NewRegistry(factory, runtime.NewTierMemory(), o.log.Named("registry"), regOpts)
	background := runtime.NewBackgroundTracker(o.log.Named("background"), s.backgroundFinished)
	s.runner = tool.NewRunner(tool.ConfigFrom(cfg, o.log.Named("strategy")), engine, registry, background, o.log.Named("tool"))

	o.log.Debug("session opened",
		zap.String("shell", cfg.Shell),
		zap.String("dir", dir),
		zap.Strings("env", utils.EnvNames(env)),
		zap.Strings("roots", cfg.WorkspaceRoots))
	return s, nil
}

func (s *session) backgroundFinished(info runtime.BackgroundInfo) {
	s.notifier.Dispatch(context.Background(), s.cfg.Notifications, notify.BackgroundFinished(info))
}

// confirmFunc returns how unapproved commands get confirmed: always yes with
// --yes, the dialog on an interactive terminal, otherwise nil so they are
// declined.
func confirmFunc(yes bool, in *os.File, out io.Writer) tool.ConfirmFunc {
	if yes {
		return func(context.Context, tool.Prepared) (bool, error) { return true, nil }
	}
	if !isatty.IsTerminal(in.Fd()) && !isatty.IsCygwinTerminal(in.Fd()) {
		return nil
	}
	return func(ctx context.Context, p tool.Prepared) (bool, error) {
		return ui.Confirm(ctx, in, out, ui.Request{
			CommandLine: p.Command,
			Dialect:     p.Dialect,
			Decision:    p.Decision,
			Background:  p.Background,
		})
	}
}

func (s *session) Close() error {
	return s.runner.Close()
}
