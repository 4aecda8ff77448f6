package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/runtime"
	"github.com/lazyvibe/vibeshell/internal/runtime/runtimetest"
	"github.com/lazyvibe/vibeshell/internal/runtime/strategy"
	"github.com/lazyvibe/vibeshell/internal/shell"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func richTerminal(opts runtime.TerminalOptions) *runtimetest.Terminal {
	term := runtimetest.NewTerminal("term-" + opts.Name)
	term.Emit("\x1b]" + runtime.RichDetectionMarker + "\x07")
	term.MarkReady()
	term.OnExecute = func(tm *runtimetest.Terminal, ex *runtime.Execution) {
		tm.Emit("tick\r\n")
		_, _ = ex.Write([]byte("ran " + ex.CommandLine() + "\r\n"))
		code := 0
		ex.End(&code)
	}
	return term
}

func newTestRunner(t *testing.T, roots ...string) (*Runner, *runtimetest.Factory) {
	t.Helper()
	engine, err := approval.NewEngine(approval.Config{
		Allow: map[string]bool{"echo": true, "ls": true, "sleep": true, "cd": true},
		Deny:  map[string]bool{"rm": true},
	}, nil)
	require.NoError(t, err)

	factory := &runtimetest.Factory{New: richTerminal}
	reg := runtime.NewRegistry(factory, nil, nil, runtime.RegistryOptions{
		IntegrationTimeout: 100 * time.Millisecond,
		RichGrace:          20 * time.Millisecond,
	})
	bg := runtime.NewBackgroundTracker(nil, nil)
	r := NewRunner(Config{
		Shell:          "/bin/bash",
		WorkspaceRoots: roots,
		Strategy: strategy.Options{
			RichIdle:   50 * time.Millisecond,
			FlushGrace: 20 * time.Millisecond,
		},
	}, engine, reg, bg, nil)
	t.Cleanup(func() { _ = r.Close() })
	return r, factory
}

func neverAsked(t *testing.T) ConfirmFunc {
	return func(context.Context, Prepared) (bool, error) {
		t.Error("confirmation requested for an approved command")
		return false, nil
	}
}

func TestRunner_ForegroundAutoApproved(t *testing.T) {
	r, factory := newTestRunner(t)

	resp, err := r.Run(context.Background(), Invocation{CommandLine: "echo hi"}, neverAsked(t))
	require.NoError(t, err)
	assert.Equal(t, "ran echo hi", resp.Result.Output)
	require.NotNil(t, resp.Result.ExitCode)
	assert.Equal(t, 0, *resp.Result.ExitCode)
	assert.False(t, resp.Background)
	assert.Empty(t, resp.Rewritten)

	_, err = r.Run(context.Background(), Invocation{CommandLine: "ls"}, neverAsked(t))
	require.NoError(t, err)
	require.Len(t, factory.Created(), 1, "session terminal is reused")
	assert.Equal(t, []string{"echo hi", "ls"}, factory.Created()[0].Commands())
	assert.Equal(t, DefaultSession, factory.Options()[0].Name)
}

func TestRunner_RewritesCdIntoCurrentDirectory(t *testing.T) {
	r, factory := newTestRunner(t)

	_, err := r.Run(context.Background(), Invocation{SessionID: "s1", CommandLine: "echo first"}, neverAsked(t))
	require.NoError(t, err)
	factory.Created()[0].SetCwd("/work/app")

	resp, err := r.Run(context.Background(), Invocation{SessionID: "s1", CommandLine: "cd /work/app && ls"}, neverAsked(t))
	require.NoError(t, err)
	assert.Equal(t, "ls", resp.Rewritten)
	assert.Equal(t, []string{"echo first", "ls"}, factory.Created()[0].Commands())
}

func TestRunner_PrepareUsesSoleRootWithoutSession(t *testing.T) {
	r, _ := newTestRunner(t, "/repo")

	p := r.Prepare(Invocation{CommandLine: "cd /repo/ && ls -la"})
	assert.Equal(t, "ls -la", p.Command)
	assert.True(t, p.Rewritten())
	assert.Equal(t, DefaultSession, p.SessionID)
	assert.Equal(t, shell.DialectSh, p.Dialect)
	assert.True(t, p.Decision.AutoApproved)
}

func TestRunner_Confirmation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		r, factory := newTestRunner(t)
		var asked Prepared
		_, err := r.Run(context.Background(), Invocation{CommandLine: "rm -rf build"}, func(_ context.Context, p Prepared) (bool, error) {
			asked = p
			return false, nil
		})
		require.ErrorIs(t, err, ErrDeclined)
		assert.Equal(t, []string{"rm -rf build"}, asked.Decision.Denied)
		assert.Empty(t, factory.Created())
	})

	t.Run("no confirm func", func(t *testing.T) {
		r, _ := newTestRunner(t)
		_, err := r.Run(context.Background(), Invocation{CommandLine: "make"}, nil)
		require.ErrorIs(t, err, ErrDeclined)
		assert.Contains(t, err.Error(), "make")
	})

	t.Run("approved", func(t *testing.T) {
		r, _ := newTestRunner(t)
		resp, err := r.Run(context.Background(), Invocation{CommandLine: "make"}, func(context.Context, Prepared) (bool, error) {
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ran make", resp.Result.Output)
	})
}

func TestRunner_Background(t *testing.T) {
	r, factory := newTestRunner(t)

	resp, err := r.Run(context.Background(), Invocation{SessionID: "s1", CommandLine: "sleep 1", Background: true}, neverAsked(t))
	require.NoError(t, err)
	assert.True(t, resp.Background)
	require.NotEmpty(t, resp.ExecutionID)
	assert.Contains(t, resp.Result.Output, resp.ExecutionID)

	assert.Eventually(t, func() bool {
		out, err := r.Output(resp.ExecutionID)
		return err == nil && out == "tick"
	}, time.Second, 5*time.Millisecond)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "sleep 1", list[0].CommandLine)

	_, ok := r.registry.Lookup("s1")
	assert.False(t, ok, "background terminals are not the session terminal")

	require.NoError(t, r.Stop(resp.ExecutionID))
	assert.True(t, factory.Created()[0].Disposed())

	_, err = r.Output("missing")
	require.ErrorIs(t, err, runtime.ErrUnknownExecution)
}
