package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
	"github.com/lazyvibe/vibeshell/internal/runtime/runtimetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastOptions() Options {
	return Options{
		RichIdle:         30 * time.Millisecond,
		BasicLongIdle:    80 * time.Millisecond,
		BasicConfirmIdle: 20 * time.Millisecond,
		SettleIdle:       10 * time.Millisecond,
		SettleTimeout:    50 * time.Millisecond,
		NoneIdle:         40 * time.Millisecond,
		FlushGrace:       30 * time.Millisecond,
		ScreenCols:       80,
		ScreenRows:       24,
	}
}

func intPtr(v int) *int { return &v }

func toolTerminal(term *runtimetest.Terminal, q model.IntegrationQuality) *runtime.ToolTerminal {
	return &runtime.ToolTerminal{Terminal: term, Quality: q, SessionID: "s1", ExecutionID: "e1"}
}

func TestForTerminal(t *testing.T) {
	term := runtimetest.NewTerminal("t")
	assert.IsType(t, &Rich{}, ForTerminal(toolTerminal(term, model.QualityRich), Options{}))
	assert.IsType(t, &Basic{}, ForTerminal(toolTerminal(term, model.QualityBasic), Options{}))
	assert.IsType(t, &None{}, ForTerminal(toolTerminal(term, model.QualityNone), Options{}))
}

func TestDefaultOptions(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, time.Second, o.RichIdle)
	assert.Equal(t, 3*time.Second, o.BasicLongIdle)
	assert.Equal(t, time.Second, o.BasicConfirmIdle)
	assert.Equal(t, time.Second, o.SettleIdle)
	assert.Equal(t, 3*time.Second, o.NoneIdle)
	assert.Equal(t, 500*time.Millisecond, o.FlushGrace)
	assert.NotNil(t, o.Log)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name   string
		output string
		code   *int
		want   string
	}{
		{name: "plain", output: "ok", want: "ok"},
		{name: "zero exit", output: "ok", code: intPtr(0), want: "ok"},
		{name: "failure", output: "oops", code: intPtr(2), want: "oops\n\nCommand exited with code 2"},
		{name: "blank", output: " \n\t", want: NoOutputSentinel},
		{name: "blank failure", code: intPtr(1), want: NoOutputSentinel + "\n\nCommand exited with code 1"},
		{name: "negative", output: "x", code: intPtr(-1), want: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatResult(tt.output, tt.code))
		})
	}
}

func TestRenderOutput(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		cmd    string
		prompt string
		want   string
	}{
		{name: "prompt on its own line", lines: []string{"", "$ ls -la", "a", "b", "$", ""}, cmd: "ls -la", prompt: "$", want: "a\nb"},
		{name: "prompt after unterminated output", lines: []string{"printf hi", "hi$ "}, cmd: "printf hi", prompt: "$", want: "hi"},
		{name: "long prompt as suffix", lines: []string{"echo -n x", "xuser@host:~$"}, cmd: "echo -n x", prompt: "user@host:~$", want: "x"},
		{name: "unknown prompt keeps last line", lines: []string{"a", "$"}, cmd: "ls", prompt: "", want: "a\n$"},
		{name: "last line without prompt", lines: []string{"a"}, cmd: "ls", prompt: ">", want: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderOutput(tt.lines, tt.cmd, tt.prompt))
		})
	}
}

func TestRich_EndEvent(t *testing.T) {
	term := runtimetest.NewTerminal("rich")
	term.MarkReady()
	term.OnExecute = func(tm *runtimetest.Terminal, ex *runtime.Execution) {
		tm.EmitMarker(runtime.MarkerExecuted)
		_, _ = ex.Write([]byte("\x1b[1mhello\x1b[0m\r\nworld\r\n"))
		ex.End(intPtr(0))
		tm.EmitMarker(runtime.MarkerFinished, "0")
		tm.EmitMarker(runtime.MarkerPromptStart)
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityRich), fastOptions()).Execute(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", res.Output)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Equal(t, []string{"echo hello"}, term.Commands())
	assert.Equal(t, 0, term.Subscribers())
}

func TestRich_NonZeroExitNoOutput(t *testing.T) {
	term := runtimetest.NewTerminal("rich")
	term.MarkReady()
	term.OnExecute = func(_ *runtimetest.Terminal, ex *runtime.Execution) {
		ex.End(intPtr(3))
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityRich), fastOptions()).Execute(context.Background(), "false")
	require.NoError(t, err)
	assert.Equal(t, NoOutputSentinel+"\n\nCommand exited with code 3", res.Output)
	assert.Equal(t, 3, *res.ExitCode)
}

func TestRich_CompletesOnIdleWhenEndNeverFires(t *testing.T) {
	term := runtimetest.NewTerminal("rich")
	term.MarkReady()
	term.OnExecute = func(tm *runtimetest.Terminal, ex *runtime.Execution) {
		tm.EmitMarker(runtime.MarkerExecuted)
		_, _ = ex.Write([]byte("partial\r\n"))
		tm.EmitMarker(runtime.MarkerPromptStart)
	}

	done := make(chan struct{})
	var (
		res model.ExecResult
		err error
	)
	go func() {
		defer close(done)
		res, err = ForTerminal(toolTerminal(term, model.QualityRich), fastOptions()).Execute(context.Background(), "serve")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rich strategy hung without an end event")
	}
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Output)
	assert.Nil(t, res.ExitCode)
}

func TestRich_StreamFailureAppended(t *testing.T) {
	term := runtimetest.NewTerminal("rich")
	term.MarkReady()
	term.OnExecute = func(_ *runtimetest.Terminal, ex *runtime.Execution) {
		_, _ = ex.Write([]byte("part"))
		ex.Fail(errors.New("read failed"))
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityRich), fastOptions()).Execute(context.Background(), "cat big")
	require.NoError(t, err)
	assert.Equal(t, "part\nread failed", res.Output)
	assert.Equal(t, "read failed", res.Error)
}

func TestRich_Cancelled(t *testing.T) {
	term := runtimetest.NewTerminal("rich")
	term.MarkReady()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ForTerminal(toolTerminal(term, model.QualityRich), fastOptions()).Execute(ctx, "sleep 100")
	assert.ErrorIs(t, err, runtime.ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"\x03"}, term.Sent())
	assert.Equal(t, 0, term.Subscribers())
}

func TestRich_NotReady(t *testing.T) {
	term := runtimetest.NewTerminal("rich")
	_, err := ForTerminal(toolTerminal(term, model.QualityRich), fastOptions()).Execute(context.Background(), "ls")
	assert.ErrorIs(t, err, runtime.ErrNotReady)
}

func basicScript(output string, end bool) func(*runtimetest.Terminal, *runtime.Execution) {
	return func(tm *runtimetest.Terminal, ex *runtime.Execution) {
		tm.Emit(ex.CommandLine() + "\r\n")
		tm.EmitMarker(runtime.MarkerExecuted)
		tm.Emit(output)
		if end {
			ex.End(intPtr(1))
			tm.EmitMarker(runtime.MarkerFinished, "1")
		}
		tm.EmitMarker(runtime.MarkerPromptStart)
		tm.Emit("$ ")
	}
}

func TestBasic_ConfirmsEndWithIdle(t *testing.T) {
	term := runtimetest.NewTerminal("basic")
	term.Emit("$ ")
	term.MarkReady()
	term.OnExecute = basicScript("progress 10%\rprogress 100%\r\nfailed\r\n", true)

	res, err := ForTerminal(toolTerminal(term, model.QualityBasic), fastOptions()).Execute(context.Background(), "make")
	require.NoError(t, err)
	assert.Equal(t, "progress 100%\nfailed\n\nCommand exited with code 1", res.Output)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, term.Subscribers())
}

func TestBasic_LongIdleBackstop(t *testing.T) {
	term := runtimetest.NewTerminal("basic")
	term.Emit("$ ")
	term.MarkReady()
	term.OnExecute = basicScript("line\r\n", false)

	start := time.Now()
	res, err := ForTerminal(toolTerminal(term, model.QualityBasic), fastOptions()).Execute(context.Background(), "cmd")
	require.NoError(t, err)
	assert.Equal(t, "line", res.Output)
	assert.Nil(t, res.ExitCode)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBasic_OutputWithoutTrailingNewline(t *testing.T) {
	term := runtimetest.NewTerminal("basic")
	term.Emit("$ ")
	term.MarkReady()
	term.OnExecute = basicScript("hi", true)

	res, err := ForTerminal(toolTerminal(term, model.QualityBasic), fastOptions()).Execute(context.Background(), "printf hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n\nCommand exited with code 1", res.Output)
}

func TestBasic_EmptyPromptKeepsOutput(t *testing.T) {
	term := runtimetest.NewTerminal("basic")
	term.MarkReady()
	term.OnExecute = func(tm *runtimetest.Terminal, ex *runtime.Execution) {
		tm.Emit(ex.CommandLine() + "\r\n")
		tm.EmitMarker(runtime.MarkerExecuted)
		tm.Emit("hi")
		ex.End(intPtr(0))
		tm.EmitMarker(runtime.MarkerFinished, "0")
		tm.EmitMarker(runtime.MarkerPromptStart)
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityBasic), fastOptions()).Execute(context.Background(), "printf hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Output)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
}

func TestBasic_WithoutIntegrationFallsBackToText(t *testing.T) {
	term := runtimetest.NewTerminal("basic")
	term.OnSend = func(tm *runtimetest.Terminal, text string) {
		tm.Emit("echo hi\r\nhi\r\n")
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityBasic), fastOptions()).Execute(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Output)
	assert.Equal(t, []string{"echo hi\r"}, term.Sent())
}

func TestNone_IdleCompletion(t *testing.T) {
	term := runtimetest.NewTerminal("none")
	term.Emit("$ ")
	term.OnSend = func(tm *runtimetest.Terminal, text string) {
		tm.Emit("ls\r\nfile1\r\nfile2\r\n$ ")
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityNone), fastOptions()).Execute(context.Background(), "ls")
	require.NoError(t, err)
	assert.Equal(t, "file1\nfile2", res.Output)
	assert.Nil(t, res.ExitCode)
	assert.False(t, term.Disposed())
	assert.Equal(t, 0, term.Subscribers())
}

func TestNone_NoOutput(t *testing.T) {
	term := runtimetest.NewTerminal("none")
	term.Emit("$ ")
	term.OnSend = func(tm *runtimetest.Terminal, text string) {
		tm.Emit("true\r\n$ ")
	}

	res, err := ForTerminal(toolTerminal(term, model.QualityNone), fastOptions()).Execute(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, NoOutputSentinel, res.Output)
}

func TestNone_CancelledDisposes(t *testing.T) {
	term := runtimetest.NewTerminal("none")
	stop := make(chan struct{})
	term.OnSend = func(tm *runtimetest.Terminal, text string) {
		go func() {
			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					tm.Emit(".")
				case <-stop:
					return
				}
			}
		}()
	}
	defer close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := ForTerminal(toolTerminal(term, model.QualityNone), fastOptions()).Execute(ctx, "yes")
	assert.ErrorIs(t, err, runtime.ErrCancelled)
	assert.True(t, term.Disposed())
}
