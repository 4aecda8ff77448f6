package strategy

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// Basic issues the command through shell integration but does not trust the
// end event on its own. Output is read from a rendered screen.
type Basic struct {
	term *runtime.ToolTerminal
	opts Options
}

// Execute runs commandLine and waits for a confirmed end.
func (s *Basic) Execute(ctx context.Context, commandLine string) (model.ExecResult, error) {
	log := s.opts.Log.With(zap.String("terminal", s.term.ID()), zap.String("strategy", "basic"))

	integration := s.term.Integration()
	if integration == nil {
		log.Debug("integration unavailable, sending as text")
		return (&None{term: s.term, opts: s.opts}).Execute(ctx, commandLine)
	}

	data, release := s.term.Subscribe()
	defer release()
	long := runtime.NewIdleTracker(s.opts.BasicLongIdle)
	defer long.Stop()
	tp := startTap(s.term.Terminal, data, s.opts, long)

	if err := settle(ctx, tp.activity, s.opts); err != nil {
		return model.ExecResult{}, cancelled(ctx)
	}
	screen, prompt := tp.startCapture()

	ex, err := integration.ExecuteCommand(commandLine)
	if err != nil {
		return model.ExecResult{}, err
	}
	ex.Discard()

	select {
	case <-ctx.Done():
		_ = s.term.SendText("\x03", false)
		return model.ExecResult{}, cancelled(ctx)
	case <-long.Idle():
		log.Debug("completed on long idle prompt")
	case <-ex.Ended():
		if err := tp.activity.WaitQuiet(ctx, s.opts.BasicConfirmIdle); err != nil {
			_ = s.term.SendText("\x03", false)
			return model.ExecResult{}, cancelled(ctx)
		}
	}

	output := renderOutput(screen.Lines(), commandLine, prompt)

	var result model.ExecResult
	if err := ex.Err(); err != nil {
		result.Error = err.Error()
		output = strings.TrimRight(output+"\n"+err.Error(), "\n")
	}
	if code, ok := ex.ExitCode(); ok {
		result.ExitCode = &code
	}
	result.Output = formatResult(output, result.ExitCode)
	return result, nil
}
