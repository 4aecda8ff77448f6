package driver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
)

// shellCommand is the configured shell line with its executable resolved.
type shellCommand struct {
	path string
	args []string
}

// name is the lower-cased executable name without a .exe suffix.
func (c shellCommand) name() string {
	return strings.TrimSuffix(strings.ToLower(filepath.Base(c.path)), ".exe")
}

// parseShell splits the configured shell line and resolves its executable
// through PATH unless it already names a file.
func parseShell(line string) (shellCommand, error) {
	fields, err := tokenizeShell(line)
	if err != nil {
		return shellCommand{}, fmt.Errorf("shell %q: %w", line, err)
	}
	if len(fields) == 0 {
		return shellCommand{}, errors.New("shell is empty")
	}
	path, err := lookShell(fields[0])
	if err != nil {
		return shellCommand{}, err
	}
	return shellCommand{path: path, args: fields[1:]}, nil
}

func lookShell(name string) (string, error) {
	if filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) {
		info, err := os.Stat(name)
		if err != nil || info.IsDir() {
			return "", fmt.Errorf("shell not found: %s", name)
		}
		return name, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("shell not found: %s: %w", name, err)
	}
	return path, nil
}

// tokenizeShell splits a shell line on whitespace. Single and double quotes
// group words and may produce empty arguments. Backslash escapes the next
// rune outside single quotes, except where it is the path separator.
func tokenizeShell(line string) ([]string, error) {
	escapes := os.PathSeparator != '\\'

	var (
		fields  []string
		field   strings.Builder
		inField bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			field.WriteRune(r)
			escaped = false
		case r == '\\' && escapes && quote != '\'':
			escaped, inField = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				field.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inField = r, true
		case unicode.IsSpace(r):
			if inField {
				fields = append(fields, field.String())
				field.Reset()
				inField = false
			}
		default:
			field.WriteRune(r)
			inField = true
		}
	}

	switch {
	case escaped:
		return nil, errors.New("trailing backslash")
	case quote != 0:
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inField {
		fields = append(fields, field.String())
	}
	return fields, nil
}
