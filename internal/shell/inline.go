package shell

import (
	"errors"
	"sort"
	"strings"
)

// MaxInlineDepth bounds recursive extraction of nested substitutions.
const MaxInlineDepth = 16

// ErrNestingTooDeep is returned when substitutions nest deeper than MaxInlineDepth.
var ErrNestingTooDeep = errors.New("inline substitutions nested too deeply")

var (
	posixInlineMarkers = []byte{'$', '<', '>'}
	pwshInlineMarkers  = []byte{'$', '@', '&'}
)

// ExtractInlineCommands returns every command embedded in commandLine through
// command or process substitution, including nested ones. The result is
// deduplicated and sorted. Unterminated substitutions are ignored.
//
// When nesting exceeds MaxInlineDepth the commands found so far are returned
// along with ErrNestingTooDeep.
func ExtractInlineCommands(commandLine string, d Dialect) ([]string, error) {
	found := make(map[string]struct{})
	err := extractInline(commandLine, d, 0, found)

	result := make([]string, 0, len(found))
	for c := range found {
		result = append(result, c)
	}
	sort.Strings(result)
	return result, err
}

func extractInline(commandLine string, d Dialect, depth int, found map[string]struct{}) error {
	var inner []string
	markers := posixInlineMarkers
	if d.IsPowerShell() {
		markers = pwshInlineMarkers
	}
	for _, marker := range markers {
		inner = append(inner, parenSubstitutions(commandLine, marker)...)
	}
	if !d.IsPowerShell() {
		inner = append(inner, backtickSubstitutions(commandLine)...)
	}
	if len(inner) > 0 && depth >= MaxInlineDepth {
		return ErrNestingTooDeep
	}

	for _, cmd := range inner {
		if cmd == "" {
			continue
		}
		found[cmd] = struct{}{}
		if err := extractInline(cmd, d, depth+1, found); err != nil {
			return err
		}
	}
	return nil
}

// parenSubstitutions finds marker( ... ) spans at the outermost level and
// returns their trimmed bodies.
func parenSubstitutions(s string, marker byte) []string {
	var out []string
	for i := 0; i+1 < len(s); i++ {
		if s[i] != marker || s[i+1] != '(' {
			continue
		}
		end := matchingParen(s, i+1)
		if end < 0 {
			continue
		}
		out = append(out, strings.TrimSpace(s[i+2:end]))
		i = end
	}
	return out
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1.
func matchingParen(s string, open int) int {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// backtickSubstitutions returns the bodies of paired backticks. Backticks do
// not nest, so pairs are matched left to right.
func backtickSubstitutions(s string) []string {
	var out []string
	for {
		start := strings.IndexByte(s, '`')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(s[start+1:], '`')
		if end < 0 {
			return out
		}
		out = append(out, strings.TrimSpace(s[start+1:start+1+end]))
		s = s[start+1+end+1:]
	}
}
