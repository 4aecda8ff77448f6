package strategy

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// Rich trusts the shell integration's command stream and end event, with an
// idle-on-prompt safety net.
type Rich struct {
	term *runtime.ToolTerminal
	opts Options
}

// Execute runs commandLine through shell integration.
func (s *Rich) Execute(ctx context.Context, commandLine string) (model.ExecResult, error) {
	log := s.opts.Log.With(zap.String("terminal", s.term.ID()), zap.String("strategy", "rich"))

	integration := s.term.Integration()
	if integration == nil {
		return model.ExecResult{}, runtime.ErrNotReady
	}

	data, release := s.term.Subscribe()
	defer release()
	tracker := runtime.NewIdleTracker(s.opts.RichIdle)
	defer tracker.Stop()
	tctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go tracker.Track(tctx, data)

	ex, err := integration.ExecuteCommand(commandLine)
	if err != nil {
		return model.ExecResult{}, err
	}
	defer ex.Discard()

	var (
		mu  sync.Mutex
		buf strings.Builder
	)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for chunk := range ex.Output() {
			mu.Lock()
			buf.Write(chunk)
			mu.Unlock()
		}
	}()

	select {
	case <-ctx.Done():
		_ = s.term.SendText("\x03", false)
		return model.ExecResult{}, cancelled(ctx)
	case <-ex.Ended():
	case <-tracker.Idle():
		log.Debug("end event missing, completed on idle prompt")
	}

	grace := time.NewTimer(s.opts.FlushGrace)
	defer grace.Stop()
	select {
	case <-drained:
	case <-grace.C:
		log.Debug("output stream still open after flush grace")
	case <-ctx.Done():
		return model.ExecResult{}, cancelled(ctx)
	}

	mu.Lock()
	output := runtime.SanitizeOutput(buf.String())
	mu.Unlock()

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
