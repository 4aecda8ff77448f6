package shell

import "strings"

// Operator tables are ordered so that a token always precedes any shorter token
// that is a textual prefix or suffix of it (&>> before &> before >, && before &).
var (
	shOperators = []string{
		"&>>", "2>>", "2>&1", "&>", "2>", ">>", ">",
		"<<<", "<<", "<",
		"&&", "||", "|&", "|", ";", "&", "\n",
	}

	zshOperators = []string{
		"&>>", "2>>", "2>&1", "&>", "2>", ">|", ">!", ">>", ">",
		"<<<", "<<", "<",
		"&&", "||", "&|", "&!", "|&", "|", ";", "&", "\n",
	}

	// -and, -or and the & call operator are ordinary arguments in PowerShell.
	pwshOperators = []string{
		"*>>", "*>", "2>>", "2>", ">>", ">",
		"&&", "||", "|", ";", "\n",
	}
)

func operatorsFor(d Dialect) []string {
	switch d {
	case DialectZsh:
		return zshOperators
	case DialectPwsh:
		return pwshOperators
	default:
		return shOperators
	}
}

// SplitCommandLine splits a command line into the sub-commands a reader would
// see, in source order. Parts are trimmed; empty parts produced by leading,
// trailing or consecutive operators are kept.
func SplitCommandLine(commandLine string, d Dialect) []string {
	commands := []string{commandLine}
	for _, op := range operatorsFor(d) {
		for i := 0; i < len(commands); i++ {
			if !strings.Contains(commands[i], op) {
				continue
			}
			parts := strings.Split(commands[i], op)
			for j := range parts {
				parts[j] = strings.TrimSpace(parts[j])
			}
			commands = splice(commands, i, parts)
			i += len(parts) - 1
		}
	}
	if len(commands) == 1 {
		commands[0] = strings.TrimSpace(commands[0])
	}
	return commands
}

// splice replaces commands[i] with parts.
func splice(commands []string, i int, parts []string) []string {
	out := make([]string, 0, len(commands)+len(parts)-1)
	out = append(out, commands[:i]...)
	out = append(out, parts...)
	return append(out, commands[i+1:]...)
}

// NonEmpty drops empty sub-commands.
func NonEmpty(commands []string) []string {
	out := make([]string, 0, len(commands))
	for _, c := range commands {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
