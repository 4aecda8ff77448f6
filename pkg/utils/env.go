package utils

import (
	"fmt"
	"sort"
	"strings"
)

// ParseEnv turns repeated NAME=VALUE flag values into the extra environment
// of new terminals. Later assignments to the same name win. Values are kept
// verbatim, including surrounding spaces and further '=' signs.
func ParseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("environment %q: want NAME=VALUE", pair)
		}
		if !validEnvName(name) {
			return nil, fmt.Errorf("environment %q: invalid variable name %q", pair, name)
		}
		env[name] = value
	}
	return env, nil
}

// validEnvName reports whether name is a portable shell variable name. Shells
// silently drop anything else from the environment they export.
func validEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// EnvNames returns the sorted variable names of env so it can be logged
// without its values.
func EnvNames(env map[string]string) []string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
