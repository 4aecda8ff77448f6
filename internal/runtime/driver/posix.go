package driver

import (
	"os"
	"os/exec"
	"path/filepath"
)

// PosixDriver launches bash, zsh and other POSIX-family shells.
type PosixDriver struct{}

// NewPosixDriver creates a new PosixDriver instance.
func NewPosixDriver() *PosixDriver {
	return &PosixDriver{}
}

// Name returns the driver identifier.
func (d *PosixDriver) Name() string {
	return "posix"
}

// BuildCommand constructs the shell command. bash gets an --rcfile and zsh a
// ZDOTDIR pointing at the integration script; other shells start bare.
func (d *PosixDriver) BuildCommand(opts LaunchOptions) (*Launch, error) {
	sc, err := parseShell(opts.Shell)
	if err != nil {
		return nil, err
	}
	args := sc.args
	env := mergeEnv(opts.Env)

	launch := &Launch{}
	if opts.Integration {
		switch sc.name() {
		case "bash":
			dir, script, err := writeScript("bash-integration.sh", "bash-integration.sh")
			if err != nil {
				return nil, err
			}
			args = append([]string{"--rcfile", script}, args...)
			if !hasArg(args, "-i") {
				args = append(args, "-i")
			}
			launch.Integrated = true
			launch.cleanup = func() { _ = os.RemoveAll(dir) }
		case "zsh":
			dir, _, err := writeScript("zsh-integration.zsh", ".zshrc")
			if err != nil {
				return nil, err
			}
			userDir := os.Getenv("ZDOTDIR")
			if userDir == "" {
				userDir, _ = os.UserHomeDir()
			}
			env = append(env, "ZDOTDIR="+dir, "VIBESHELL_USER_ZDOTDIR="+userDir)
			if !hasArg(args, "-i") {
				args = append(args, "-i")
			}
			launch.Integrated = true
			launch.cleanup = func() { _ = os.RemoveAll(dir) }
		}
	}

	cmd := exec.Command(sc.path, args...)
	cmd.Dir = opts.Dir
	cmd.Env = env
	launch.Cmd = cmd
	return launch, nil
}

// Validate checks the shell can be found.
func (d *PosixDriver) Validate(opts LaunchOptions) error {
	_, err := parseShell(opts.Shell)
	return err
}

func hasArg(args []string, arg string) bool {
	for _, a := range args {
		if a == arg {
			return true
		}
	}
	return false
}

// writeScript copies an embedded integration script into a fresh temp dir.
func writeScript(name, as string) (dir, path string, err error) {
	body, err := scripts.ReadFile("scripts/" + name)
	if err != nil {
		return "", "", err
	}
	dir, err = os.MkdirTemp("", "vibeshell-")
	if err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, as)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}
	return dir, path, nil
}

// mergeEnv starts from the current environment and overlays extra. TERM
// defaults to xterm-256color so programs emit normal escape sequences.
func mergeEnv(extra map[string]string) []string {
	env := os.Environ()
	hasTerm := false
	for k, v := range extra {
		env = append(env, k+"="+v)
		if k == "TERM" {
			hasTerm = true
		}
	}
	if !hasTerm {
		env = append(env, "TERM=xterm-256color")
	}
	return env
}
