// Package shell provides heuristic, dialect-aware analysis of shell command lines.
//
// Nothing in this package runs a real shell grammar. Command lines are split on
// ordered operator tables and scanned for substitution markers, which is enough
// to classify commands for auto-approval but not to execute them.
package shell

import (
	"path/filepath"
	"strings"
)

// Dialect selects the splitting and extraction rules for a shell family.
type Dialect int

const (
	// DialectSh covers POSIX sh, bash and any unrecognized shell.
	DialectSh Dialect = iota
	// DialectZsh covers zsh.
	DialectZsh
	// DialectPwsh covers PowerShell and pwsh.
	DialectPwsh
)

// String returns the string representation of a Dialect.
func (d Dialect) String() string {
	switch d {
	case DialectSh:
		return "posix-sh"
	case DialectZsh:
		return "posix-zsh"
	case DialectPwsh:
		return "pwsh"
	default:
		return "unknown"
	}
}

// IsPowerShell reports whether d is the PowerShell family.
func (d Dialect) IsPowerShell() bool {
	return d == DialectPwsh
}

// ClassifyShell derives the dialect from a shell executable path or name.
func ClassifyShell(shellPath string) Dialect {
	name := strings.TrimSpace(shellPath)
	if name == "" {
		return DialectSh
	}
	// filepath.Base does not split on backslashes outside Windows.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	} else {
		name = filepath.Base(name)
	}
	name = strings.TrimSuffix(strings.ToLower(name), ".exe")

	switch name {
	case "pwsh", "powershell", "pwsh-preview":
		return DialectPwsh
	case "zsh":
		return DialectZsh
	default:
		return DialectSh
	}
}
