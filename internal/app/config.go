// Package app provides application-level configuration and initialization.
package app

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lazyvibe/vibeshell/internal/approval"
	"github.com/lazyvibe/vibeshell/internal/model"
)

// AppName names the configuration directory.
const AppName = "vibeshell"

// Config holds the application configuration.
type Config struct {
	// Shell is the shell executable, optionally with arguments.
	Shell string `yaml:"shell"`
	// ShellIntegration injects the integration script into new shells.
	ShellIntegration bool `yaml:"shell_integration"`
	// WorkspaceRoots are the directories commands usually run in.
	WorkspaceRoots []string `yaml:"workspace_roots,omitempty"`
	// AutoApprove holds the allow and deny rules.
	AutoApprove approval.Config `yaml:"auto_approve"`
	// Timeouts tunes terminal creation and execution.
	Timeouts TimeoutConfig `yaml:"timeouts"`
	// Notifications configures background completion notices.
	Notifications model.NotificationConfig `yaml:"notifications"`
	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// TimeoutConfig holds every timing knob. Zero values use the built-in defaults.
type TimeoutConfig struct {
	IntegrationWait  time.Duration `yaml:"integration_wait,omitempty"`
	RichGrace        time.Duration `yaml:"rich_grace,omitempty"`
	RichIdle         time.Duration `yaml:"rich_idle,omitempty"`
	BasicLongIdle    time.Duration `yaml:"basic_long_idle,omitempty"`
	BasicConfirmIdle time.Duration `yaml:"basic_confirm_idle,omitempty"`
	Settle           time.Duration `yaml:"settle,omitempty"`
	NoneIdle         time.Duration `yaml:"none_idle,omitempty"`
	FlushGrace       time.Duration `yaml:"flush_grace,omitempty"`
}

// LogConfig controls the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File receives logs instead of stderr when set.
	File string `yaml:"file,omitempty"`
	// Development switches to human-readable console output.
	Development bool `yaml:"development,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Shell:            DetectShell(),
		ShellIntegration: true,
		AutoApprove: approval.Config{
			Allow: map[string]bool{},
			Deny:  map[string]bool{},
		},
		Notifications: model.NotificationConfig{Desktop: true},
		Log:           LogConfig{Level: "warn"},
	}
}

// DetectShell picks the user's shell.
func DetectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if runtime.GOOS == "windows" {
		for _, candidate := range []string{"pwsh.exe", "powershell.exe"} {
			if path, err := exec.LookPath(candidate); err == nil {
				return path
			}
		}
		return "powershell.exe"
	}
	for _, candidate := range []string{"/bin/bash", "/bin/zsh"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "/bin/sh"
}

// ConfigDir returns the configuration directory, honoring XDG_CONFIG_HOME.
func ConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath(configDir string) string {
	return filepath.Join(configDir, "config.yaml")
}

// LoadConfig loads the configuration from disk. A missing file yields the defaults.
func LoadConfig(configDir string) (*Config, error) {
	return LoadConfigFile(ConfigPath(configDir))
}

// LoadConfigFile loads the configuration at path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return config, nil
}

// SaveConfig saves the configuration to disk.
func SaveConfig(configDir string, config *Config) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(configDir), data, 0o644)
}

// AddWorkspaceRoot adds a cleaned root, ignoring duplicates.
func (c *Config) AddWorkspaceRoot(path string) {
	path = filepath.Clean(path)
	for _, p := range c.WorkspaceRoots {
		if p == path {
			return
		}
	}
	c.WorkspaceRoots = append(c.WorkspaceRoots, path)
}
