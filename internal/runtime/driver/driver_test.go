package driver

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyvibe/vibeshell/internal/shell"
)

func requireShell(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

func envValue(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(env[i], key+"="); ok {
			return v, true
		}
	}
	return "", false
}

func TestTokenizeShell(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{input: "bash", want: []string{"bash"}},
		{input: "  /bin/zsh\t-l ", want: []string{"/bin/zsh", "-l"}},
		{input: `"/opt/my shell/bin/bash" --norc`, want: []string{"/opt/my shell/bin/bash", "--norc"}},
		{input: `bash -c ''`, want: []string{"bash", "-c", ""}},
		{input: `bash "unterminated`, wantErr: true},
		{input: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := tokenizeShell(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShell(t *testing.T) {
	requireShell(t, "sh")

	sc, err := parseShell("sh -e")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(sc.path))
	assert.Equal(t, "sh", sc.name())
	assert.Equal(t, []string{"-e"}, sc.args)

	_, err = parseShell("   ")
	assert.ErrorContains(t, err, "shell is empty")

	_, err = parseShell(t.TempDir())
	assert.ErrorContains(t, err, "shell not found")
}

func TestRegistry_Drivers(t *testing.T) {
	r := NewRegistry()
	for _, d := range []shell.Dialect{shell.DialectSh, shell.DialectZsh} {
		drv, ok := r.Get(d)
		require.True(t, ok)
		assert.Equal(t, "posix", drv.Name())
	}
	drv, ok := r.Get(shell.DialectPwsh)
	require.True(t, ok)
	assert.Equal(t, "pwsh", drv.Name())
}

func TestRegistry_BuildRejectsEmptyShell(t *testing.T) {
	_, err := NewRegistry().Build(LaunchOptions{Shell: "  "})
	assert.Error(t, err)
}

func TestPosixDriver_MissingShell(t *testing.T) {
	err := NewPosixDriver().Validate(LaunchOptions{Shell: "definitely-not-a-shell-xyz"})
	assert.Error(t, err)
}

func TestPosixDriver_BareShell(t *testing.T) {
	requireShell(t, "sh")
	dir := t.TempDir()

	launch, err := NewRegistry().Build(LaunchOptions{
		Shell:       "sh",
		Dir:         dir,
		Env:         map[string]string{"PAGER": "cat"},
		Integration: true,
	})
	require.NoError(t, err)
	defer launch.Cleanup()

	assert.False(t, launch.Integrated)
	assert.Equal(t, dir, launch.Cmd.Dir)
	v, ok := envValue(launch.Cmd.Env, "PAGER")
	assert.True(t, ok)
	assert.Equal(t, "cat", v)
	v, _ = envValue(launch.Cmd.Env, "TERM")
	assert.Equal(t, "xterm-256color", v)
}

func TestPosixDriver_BashRcfile(t *testing.T) {
	requireShell(t, "bash")

	launch, err := NewRegistry().Build(LaunchOptions{Shell: "bash", Integration: true})
	require.NoError(t, err)
	require.True(t, launch.Integrated)

	args := launch.Cmd.Args
	require.GreaterOrEqual(t, len(args), 4)
	assert.Equal(t, "--rcfile", args[1])
	assert.Contains(t, args, "-i")

	body, err := os.ReadFile(args[2])
	require.NoError(t, err)
	assert.Contains(t, string(body), "HasRichCommandDetection=True")

	launch.Cleanup()
	_, err = os.Stat(filepath.Dir(args[2]))
	assert.True(t, os.IsNotExist(err))
}

func TestPosixDriver_ZshDotDir(t *testing.T) {
	requireShell(t, "zsh")

	launch, err := NewRegistry().Build(LaunchOptions{Shell: "zsh", Integration: true})
	require.NoError(t, err)
	defer launch.Cleanup()

	dir, ok := envValue(launch.Cmd.Env, "ZDOTDIR")
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, ".zshrc"))
	assert.NoError(t, err)
	_, ok = envValue(launch.Cmd.Env, "VIBESHELL_USER_ZDOTDIR")
	assert.True(t, ok)
}

func TestPosixDriver_IntegrationOff(t *testing.T) {
	requireShell(t, "bash")

	launch, err := NewRegistry().Build(LaunchOptions{Shell: "bash --norc"})
	require.NoError(t, err)
	assert.False(t, launch.Integrated)
	assert.Equal(t, []string{"--norc"}, launch.Cmd.Args[1:])
	launch.Cleanup()
}

func TestPwshDriver_DotSourcesScript(t *testing.T) {
	requireShell(t, "pwsh")

	launch, err := NewRegistry().Build(LaunchOptions{Shell: "pwsh", Integration: true})
	require.NoError(t, err)
	defer launch.Cleanup()

	args := launch.Cmd.Args
	assert.Equal(t, "-NoLogo", args[1])
	assert.Contains(t, args, "-NoExit")
	assert.True(t, strings.HasPrefix(args[len(args)-1], ". '"))
}

func TestEmbeddedScripts(t *testing.T) {
	for _, name := range []string{"bash-integration.sh", "zsh-integration.zsh", "pwsh-integration.ps1"} {
		body, err := scripts.ReadFile("scripts/" + name)
		require.NoError(t, err, name)
		assert.Contains(t, string(body), "633;", name)
	}
}
