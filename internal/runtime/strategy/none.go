package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// None types the command as keystrokes and treats data silence as completion.
// No exit code is available.
type None struct {
	term *runtime.ToolTerminal
	opts Options
}

// Execute sends commandLine and waits for the terminal to go quiet.
func (s *None) Execute(ctx context.Context, commandLine string) (model.ExecResult, error) {
	log := s.opts.Log.With(zap.String("terminal", s.term.ID()), zap.String("strategy", "none"))

	data, release := s.term.Subscribe()
	defer release()
	tp := startTap(s.term.Terminal, data, s.opts)

	if err := settle(ctx, tp.activity, s.opts); err != nil {
		s.dispose(log)
		return model.ExecResult{}, cancelled(ctx)
	}
	screen, prompt := tp.startCapture()

	if err := s.term.SendText(commandLine, true); err != nil {
		return model.ExecResult{}, err
	}
	if err := tp.activity.WaitQuiet(ctx, s.opts.NoneIdle); err != nil {
		s.dispose(log)
		return model.ExecResult{}, cancelled(ctx)
	}

	output := renderOutput(screen.Lines(), commandLine, prompt)
	return model.ExecResult{Output: formatResult(output, nil)}, nil
}

// dispose tears down a terminal whose command state is unknown.
func (s *None) dispose(log *zap.Logger) {
	if err := s.term.Dispose(); err != nil {
		log.Warn("dispose after cancellation failed", zap.Error(err))
	}
}
