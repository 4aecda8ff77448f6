// Package tool is the entry point used to run one command line on behalf of
// an agent: it rewrites the line, decides whether it needs confirmation and
// executes it in the session's terminal.
package tool

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
	"github.com/lazyvibe/vibeshell/internal/runtime/strategy"
	"github.com/lazyvibe/vibeshell/internal/shell"
)

// DefaultSession is used when an invocation names no session.
const DefaultSession = "default"

// ErrDeclined is returned when a command needing confirmation is not approved.
var ErrDeclined = errors.New("command declined")

// Invocation is one request to run a command line.
type Invocation struct {
	SessionID   string
	CommandLine string
	Background  bool
}

// Prepared is an invocation after rewriting and evaluation.
type Prepared struct {
	Invocation
	// Command is the line that will actually run.
	Command  string
	Dialect  shell.Dialect
	Decision approval.Decision
}

// Rewritten reports whether Command differs from the requested line.
func (p Prepared) Rewritten() bool {
	return p.Command != p.CommandLine
}

// ConfirmFunc asks the user whether p may run.
type ConfirmFunc func(ctx context.Context, p Prepared) (bool, error)

// Response is what Run reports back.
type Response struct {
	Result model.ExecResult
	// ExecutionID identifies a background execution.
	ExecutionID string
	Background  bool
	// Rewritten holds the rewritten line when it differs from the request.
	Rewritten string
}

// Evaluator decides whether a command line is auto-approved.
type Evaluator interface {
	Evaluate(commandLine string, d shell.Dialect) approval.Decision
}

// Config holds what the runner needs besides its collaborators.
type Config struct {
	// Shell is the configured shell; it selects the dialect.
	Shell          string
	WorkspaceRoots []string
	Strategy       strategy.Options
}

// Runner runs invocations against a terminal registry.
type Runner struct {
	cfg        Config
	dialect    shell.Dialect
	approver   Evaluator
	registry   *runtime.Registry
	background *runtime.BackgroundTracker
	log        *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg Config, approver Evaluator, registry *runtime.Registry, background *runtime.BackgroundTracker, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Strategy.Log == nil {
		cfg.Strategy.Log = log
	}
	return &Runner{
		cfg:        cfg,
		dialect:    shell.ClassifyShell(cfg.Shell),
		approver:   approver,
		registry:   registry,
		background: background,
		log:        log,
	}
}

// Dialect returns the dialect of the configured shell.
func (r *Runner) Dialect() shell.Dialect {
	return r.dialect
}

// Prepare rewrites inv against its session's cwd and evaluates the result.
func (r *Runner) Prepare(inv Invocation) Prepared {
	if inv.SessionID == "" {
		inv.SessionID = DefaultSession
	}
	cwd := ""
	if t, ok := r.registry.Lookup(inv.SessionID); ok {
		cwd = t.Cwd()
	}
	command := shell.RewriteCommand(inv.CommandLine, r.dialect, cwd, r.cfg.WorkspaceRoots, goruntime.GOOS == "windows")
	return Prepared{
		Invocation: inv,
		Command:    command,
		Dialect:    r.dialect,
		Decision:   r.approver.Evaluate(command, r.dialect),
	}
}

// Run prepares inv, asks confirm when the line is not auto-approved and runs
// it. Foreground commands reuse the session terminal; background commands get
// a terminal of their own.
func (r *Runner) Run(ctx context.Context, inv Invocation, confirm ConfirmFunc) (Response, error) {
	p := r.Prepare(inv)
	if !p.Decision.AutoApproved {
		if confirm == nil {
			return Response{}, fmt.Errorf("%w: %s", ErrDeclined, p.Decision.Reason)
		}
		ok, err := confirm(ctx, p)
		if err != nil {
			return Response{}, fmt.Errorf("confirm command: %w", err)
		}
		if !ok {
			return Response{}, ErrDeclined
		}
	}

	resp := Response{Background: p.Background}
	if p.Rewritten() {
		resp.Rewritten = p.Command
	}
	if p.Background {
		return r.runBackground(ctx, p, resp)
	}

	t, created, err := r.registry.GetOrCreate(ctx, p.SessionID, uuid.NewString())
	if err != nil {
		return Response{}, fmt.Errorf("session terminal: %w", err)
	}
	r.log.Debug("running command",
		zap.String("session", p.SessionID),
		zap.String("terminal", t.ID()),
		zap.Bool("created", created),
		zap.Stringer("quality", t.Quality))

	res, err := strategy.ForTerminal(t, r.cfg.Strategy).Execute(ctx, p.Command)
	if err != nil {
		return Response{}, err
	}
	resp.Result = res
	return resp, nil
}

func (r *Runner) runBackground(ctx context.Context, p Prepared, resp Response) (Response, error) {
	t, err := r.registry.CreateTerminal(ctx, p.SessionID, uuid.NewString(), true)
	if err != nil {
		return Response{}, fmt.Errorf("background terminal: %w", err)
	}
	id, err := r.background.Start(t, p.Command)
	if err != nil {
		_ = t.Dispose()
		return Response{}, err
	}
	resp.ExecutionID = id
	resp.Result.Output = fmt.Sprintf("Command is running in the background with ID=%s", id)
	return resp, nil
}

// Output returns the sanitized output of a background execution.
func (r *Runner) Output(id string) (string, error) {
	return r.background.Output(id)
}

// Info returns the state of a background execution.
func (r *Runner) Info(id string) (runtime.BackgroundInfo, error) {
	return r.background.Info(id)
}

// List returns every background execution.
func (r *Runner) List() []runtime.BackgroundInfo {
	return r.background.List()
}

// Stop ends a background execution.
func (r *Runner) Stop(id string) error {
	return r.background.Stop(id)
}

// Close stops background executions and disposes every terminal.
func (r *Runner) Close() error {
	return errors.Join(r.background.Close(), r.registry.CloseAll())
}
