package shell

import (
	"regexp"
	"strings"
)

var (
	posixCdPrefix = regexp.MustCompile(`(?s)^\s*cd\s+("[^"]*"|'[^']*'|[^\s;&]+)\s*(?:&&|;)\s*(.+)$`)
	pwshCdPrefix  = regexp.MustCompile(`(?is)^\s*(?:cd|Set-Location)(?:\s+-Path)?\s+("[^"]*"|'[^']*'|[^\s;&]+)\s*&&\s*(.+)$`)
)

// RewriteCommand drops a leading "cd <dir> &&" (or "Set-Location <dir> &&" in
// PowerShell) when <dir> is already where the command will run: the session's
// cwd, or the sole workspace root when the cwd is unknown. Paths compare
// case-insensitively when caseInsensitive is set (Windows hosts).
func RewriteCommand(commandLine string, d Dialect, cwd string, workspaceRoots []string, caseInsensitive bool) string {
	re := posixCdPrefix
	if d.IsPowerShell() {
		re = pwshCdPrefix
	}
	m := re.FindStringSubmatch(commandLine)
	if m == nil {
		return commandLine
	}

	target := cwd
	if target == "" && len(workspaceRoots) == 1 {
		target = workspaceRoots[0]
	}
	if target == "" {
		return commandLine
	}

	dir := normalizeDir(m[1])
	want := normalizeDir(target)
	if caseInsensitive {
		dir = strings.ToLower(dir)
		want = strings.ToLower(want)
	}
	if dir != want {
		return commandLine
	}
	return strings.TrimSpace(m[2])
}

func normalizeDir(p string) string {
	p = strings.TrimSpace(p)
	if len(p) >= 2 && (p[0] == '"' || p[0] == '\'') && p[len(p)-1] == p[0] {
		p = p[1 : len(p)-1]
	}
	for len(p) > 1 && (strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`)) {
		if len(p) == 3 && p[1] == ':' {
			break // C:\
		}
		p = p[:len(p)-1]
	}
	return p
}
