package driver

import (
	"os"
	"os/exec"
	"strings"
)

// PwshDriver launches PowerShell.
type PwshDriver struct{}

// NewPwshDriver creates a new PwshDriver instance.
func NewPwshDriver() *PwshDriver {
	return &PwshDriver{}
}

// Name returns the driver identifier.
func (d *PwshDriver) Name() string {
	return "pwsh"
}

// BuildCommand constructs the PowerShell command, dot-sourcing the
// integration script when requested.
func (d *PwshDriver) BuildCommand(opts LaunchOptions) (*Launch, error) {
	sc, err := parseShell(opts.Shell)
	if err != nil {
		return nil, err
	}
	args := append([]string{"-NoLogo"}, sc.args...)

	launch := &Launch{}
	if opts.Integration {
		dir, script, err := writeScript("pwsh-integration.ps1", "integration.ps1")
		if err != nil {
			return nil, err
		}
		quoted := "'" + strings.ReplaceAll(script, "'", "''") + "'"
		args = append(args, "-NoExit", "-Command", ". "+quoted)
		launch.Integrated = true
		launch.cleanup = func() { _ = os.RemoveAll(dir) }
	}

	cmd := exec.Command(sc.path, args...)
	cmd.Dir = opts.Dir
	cmd.Env = mergeEnv(opts.Env)
	launch.Cmd = cmd
	return launch, nil
}

// Validate checks the shell can be found.
func (d *PwshDriver) Validate(opts LaunchOptions) error {
	_, err := parseShell(opts.Shell)
	return err
}
