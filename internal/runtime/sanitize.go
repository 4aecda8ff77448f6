package runtime

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

const (
	// MaxOutputLength caps sanitized output.
	MaxOutputLength = 60000
	// TruncationMarker replaces the middle of over-long output.
	TruncationMarker = "[... MIDDLE OF OUTPUT TRUNCATED ...]"
)

// SanitizeOutput strips escape sequences and control characters, trims
// trailing line breaks and truncates the middle of over-long output.
func SanitizeOutput(s string) string {
	clean := strings.TrimRight(CleanOutput(s), "\n")
	return TruncateMiddle(clean, MaxOutputLength)
}

// CleanOutput removes ANSI escape codes and control characters other than
// newline and tab. CRLF becomes LF.
func CleanOutput(input string) string {
	clean := ansi.Strip(input)
	clean = strings.ReplaceAll(clean, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TruncateMiddle shortens s to at most max bytes, keeping the first 40% and
// the last 60% of the remaining budget around TruncationMarker.
func TruncateMiddle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	marker := "\n\n" + TruncationMarker + "\n\n"
	budget := max - len(marker)
	if budget <= 0 {
		return TruncationMarker
	}
	head := budget * 2 / 5
	tail := budget - head

	for head > 0 && !utf8.RuneStart(s[head]) {
		head--
	}
	from := len(s) - tail
	for from < len(s) && !utf8.RuneStart(s[from]) {
		from++
	}
	return s[:head] + marker + s[from:]
}

// TrimEmptyLines drops fully empty lines from both ends.
func TrimEmptyLines(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
