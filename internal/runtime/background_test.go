package runtime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime"
	"github.com/lazyvibe/vibeshell/internal/runtime/runtimetest"
)

func TestBackgroundTracker_IntegratedCommand(t *testing.T) {
	term := runtimetest.NewTerminal("bg")
	term.MarkReady()
	term.OnExecute = func(tm *runtimetest.Terminal, ex *runtime.Execution) {
		tm.EmitMarker(runtime.MarkerExecuted)
		tm.Emit("\x1b[33mbuilding\x1b[0m\r\n")
		tm.Emit("done\r\n")
		code := 2
		ex.End(&code)
	}

	finished := make(chan runtime.BackgroundInfo, 1)
	tracker := runtime.NewBackgroundTracker(nil, func(info runtime.BackgroundInfo) {
		finished <- info
	})
	defer tracker.Close()

	tt := &runtime.ToolTerminal{Terminal: term, Quality: model.QualityRich, ExecutionID: "exec-1"}
	id, err := tracker.Start(tt, "make build")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", id)

	var info runtime.BackgroundInfo
	select {
	case info = <-finished:
	case <-time.After(time.Second):
		t.Fatal("completion not reported")
	}
	assert.True(t, info.Finished)
	require.NotNil(t, info.ExitCode)
	assert.Equal(t, 2, *info.ExitCode)
	assert.Equal(t, []string{"make build"}, term.Commands())

	require.Eventually(t, func() bool {
		out, err := tracker.Output(id)
		return err == nil && out == "building\ndone"
	}, time.Second, 5*time.Millisecond)
}

func TestBackgroundTracker_SendsTextWithoutIntegration(t *testing.T) {
	term := runtimetest.NewTerminal("plain")
	tracker := runtime.NewBackgroundTracker(nil, nil)
	defer tracker.Close()

	id, err := tracker.Start(&runtime.ToolTerminal{Terminal: term}, "tail -f log")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"tail -f log\r"}, term.Sent())

	term.Emit("line one\r\n")
	require.Eventually(t, func() bool {
		out, _ := tracker.Output(id)
		return out == "line one"
	}, time.Second, 5*time.Millisecond)

	term.Emit("line two\r\n\r\n")
	require.Eventually(t, func() bool {
		out, _ := tracker.Output(id)
		return out == "line one\nline two"
	}, time.Second, 5*time.Millisecond)

	list := tracker.List()
	require.Len(t, list, 1)
	assert.Equal(t, "tail -f log", list[0].CommandLine)
	assert.False(t, list[0].Finished)
}

func TestBackgroundTracker_StopDisposes(t *testing.T) {
	term := runtimetest.NewTerminal("stop")
	tracker := runtime.NewBackgroundTracker(nil, nil)

	id, err := tracker.Start(&runtime.ToolTerminal{Terminal: term}, "sleep 100")
	require.NoError(t, err)
	require.NoError(t, tracker.Stop(id))
	assert.True(t, term.Disposed())

	_, err = tracker.Output(id)
	assert.ErrorIs(t, err, runtime.ErrUnknownExecution)
	assert.ErrorIs(t, tracker.Stop(id), runtime.ErrUnknownExecution)
	_, err = tracker.Info("missing")
	assert.ErrorIs(t, err, runtime.ErrUnknownExecution)
}
