package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.ShellIntegration)
	assert.NotEmpty(t, cfg.Shell)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Empty(t, cfg.AutoApprove.Allow)
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	body := `shell: /bin/zsh
workspace_roots:
  - /ws
auto_approve:
  allow:
    echo: true
    /^git (status|log)\b/: true
    rm: false
  deny:
    rm: true
timeouts:
  integration_wait: 2s
  none_idle: 1500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/bin/zsh", cfg.Shell)
	assert.True(t, cfg.ShellIntegration)
	assert.Equal(t, []string{"/ws"}, cfg.WorkspaceRoots)
	assert.True(t, cfg.AutoApprove.Allow["echo"])
	assert.True(t, cfg.AutoApprove.Allow[`/^git (status|log)\b/`])
	assert.False(t, cfg.AutoApprove.Allow["rm"])
	assert.True(t, cfg.AutoApprove.Deny["rm"])
	assert.Equal(t, 2*time.Second, cfg.Timeouts.IntegrationWait)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.NoneIdle)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(ConfigPath(dir), []byte("shell: [unclosed"), 0o644))
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := DefaultConfig()
	cfg.Shell = "pwsh"
	cfg.ShellIntegration = false
	cfg.AutoApprove.Allow["Get-ChildItem"] = true
	cfg.Timeouts.RichIdle = 750 * time.Millisecond

	require.NoError(t, SaveConfig(dir, cfg))
	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", AppName), dir)
}

func TestAddWorkspaceRoot(t *testing.T) {
	cfg := &Config{}
	cfg.AddWorkspaceRoot("/ws/")
	cfg.AddWorkspaceRoot("/ws")
	cfg.AddWorkspaceRoot("/other")
	assert.Equal(t, []string{"/ws", "/other"}, cfg.WorkspaceRoots)
}
