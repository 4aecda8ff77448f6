// Package strategy runs one command line on a terminal and recovers its output
// and exit code at the fidelity the terminal's shell integration allows.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// NoOutputSentinel replaces blank output.
const NoOutputSentinel = "Command produced no output"

// Strategy executes a single foreground command.
type Strategy interface {
	Execute(ctx context.Context, commandLine string) (model.ExecResult, error)
}

// Options carries the strategy timings.
type Options struct {
	// RichIdle is the idle-on-prompt safety net for Rich.
	RichIdle time.Duration
	// BasicLongIdle is the idle-on-prompt backstop for Basic.
	BasicLongIdle time.Duration
	// BasicConfirmIdle is the data silence required after Basic's end event.
	BasicConfirmIdle time.Duration
	// SettleIdle is the silence awaited before a command is issued.
	SettleIdle time.Duration
	// SettleTimeout bounds the wait for SettleIdle.
	SettleTimeout time.Duration
	// NoneIdle is the silence that ends a command without integration.
	NoneIdle time.Duration
	// FlushGrace is how long Rich keeps draining output after completion.
	FlushGrace time.Duration

	ScreenCols int
	ScreenRows int

	Log *zap.Logger
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		RichIdle:         time.Second,
		BasicLongIdle:    3 * time.Second,
		BasicConfirmIdle: time.Second,
		SettleIdle:       time.Second,
		SettleTimeout:    3 * time.Second,
		NoneIdle:         3 * time.Second,
		FlushGrace:       500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RichIdle <= 0 {
		o.RichIdle = d.RichIdle
	}
	if o.BasicLongIdle <= 0 {
		o.BasicLongIdle = d.BasicLongIdle
	}
	if o.BasicConfirmIdle <= 0 {
		o.BasicConfirmIdle = d.BasicConfirmIdle
	}
	if o.SettleIdle <= 0 {
		o.SettleIdle = d.SettleIdle
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = d.SettleTimeout
	}
	if o.NoneIdle <= 0 {
		o.NoneIdle = d.NoneIdle
	}
	if o.FlushGrace <= 0 {
		o.FlushGrace = d.FlushGrace
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// ForTerminal picks the strategy for t's integration quality.
func ForTerminal(t *runtime.ToolTerminal, opts Options) Strategy {
	opts = opts.withDefaults()
	switch t.Quality {
	case model.QualityRich:
		return &Rich{term: t, opts: opts}
	case model.QualityBasic:
		return &Basic{term: t, opts: opts}
	default:
		return &None{term: t, opts: opts}
	}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", runtime.ErrCancelled, ctx.Err())
}

// formatResult applies the sentinel and the exit code trailer.
func formatResult(output string, exitCode *int) string {
	if strings.TrimSpace(output) == "" {
		output = NoOutputSentinel
	}
	if exitCode != nil && *exitCode > 0 {
		output += fmt.Sprintf("\n\nCommand exited with code %d", *exitCode)
	}
	return output
}

// settle waits for the terminal to go quiet before a command is issued.
func settle(ctx context.Context, activity *runtime.Activity, opts Options) error {
	sctx, cancel := context.WithTimeout(ctx, opts.SettleTimeout)
	defer cancel()
	_ = activity.WaitQuiet(sctx, opts.SettleIdle)
	return ctx.Err()
}

// renderOutput turns the captured screen into command output. The echoed
// command line is dropped from the top and the prompt printed after the
// command from the bottom. Output without a trailing newline shares its last
// line with that prompt, so only the prompt text itself is removed. An
// unknown prompt leaves the last line alone.
func renderOutput(lines []string, commandLine, prompt string) string {
	lines = runtime.TrimEmptyLines(lines)
	if cmd := strings.TrimSpace(commandLine); cmd != "" && len(lines) > 0 && strings.Contains(lines[0], cmd) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && prompt != "" {
		last := strings.TrimRight(lines[n-1], " ")
		switch {
		case strings.TrimSpace(last) == prompt:
			lines = lines[:n-1]
		case strings.HasSuffix(last, prompt):
			lines[n-1] = strings.TrimSuffix(last, prompt)
		}
	}
	return runtime.SanitizeOutput(strings.Join(runtime.TrimEmptyLines(lines), "\n"))
}
