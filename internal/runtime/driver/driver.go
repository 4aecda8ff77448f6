// Package driver builds the shell processes that back terminals.
package driver

import (
	"embed"
	"errors"
	"os/exec"

	"github.com/lazyvibe/vibeshell/internal/shell"
)

//go:embed scripts/*
var scripts embed.FS

// LaunchOptions describes the shell to start.
type LaunchOptions struct {
	// Shell is the shell executable, optionally followed by arguments.
	Shell string
	// Dir is the working directory.
	Dir string
	// Env holds variables added on top of the current environment.
	Env map[string]string
	// Integration injects the shell integration script when supported.
	Integration bool
}

// Launch is a prepared shell command plus the cleanup for any files it needs.
type Launch struct {
	Cmd *exec.Cmd
	// Integrated reports whether an integration script was injected.
	Integrated bool
	cleanup    func()
}

// Cleanup removes temporary files created for the launch.
func (l *Launch) Cleanup() {
	if l != nil && l.cleanup != nil {
		l.cleanup()
		l.cleanup = nil
	}
}

// Driver builds shell commands for one dialect.
type Driver interface {
	// Name returns the driver identifier.
	Name() string
	// BuildCommand constructs the shell command for opts.
	BuildCommand(opts LaunchOptions) (*Launch, error)
	// Validate checks that the shell can be started.
	Validate(opts LaunchOptions) error
}

// Registry holds one driver per dialect.
type Registry struct {
	drivers map[shell.Dialect]Driver
}

// NewRegistry creates a driver registry with built-in drivers.
func NewRegistry() *Registry {
	r := &Registry{drivers: make(map[shell.Dialect]Driver)}
	r.Register(shell.DialectSh, NewPosixDriver())
	r.Register(shell.DialectZsh, NewPosixDriver())
	r.Register(shell.DialectPwsh, NewPwshDriver())
	return r
}

// Register adds or replaces the driver for d.
func (r *Registry) Register(d shell.Dialect, drv Driver) {
	r.drivers[d] = drv
}

// Get retrieves the driver for d.
func (r *Registry) Get(d shell.Dialect) (Driver, bool) {
	drv, ok := r.drivers[d]
	return drv, ok
}

// Build picks the driver matching the configured shell and builds its command.
func (r *Registry) Build(opts LaunchOptions) (*Launch, error) {
	sc, err := parseShell(opts.Shell)
	if err != nil {
		return nil, err
	}
	drv, ok := r.Get(shell.ClassifyShell(sc.path))
	if !ok {
		return nil, errors.New("no driver for shell: " + sc.path)
	}
	return drv.BuildCommand(opts)
}
