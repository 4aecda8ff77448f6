// Package approval decides whether a command line may run without asking the user.
package approval

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidRule is returned when a configured regex entry does not compile.
var ErrInvalidRule = errors.New("invalid auto-approve rule")

// RuleKind records how a rule was written in the configuration.
type RuleKind int

const (
	// RuleLiteral is a command prefix matched up to a word boundary.
	RuleLiteral RuleKind = iota
	// RuleRegex is a /.../ entry, optionally followed by flags.
	RuleRegex
)

// String returns the string representation of a RuleKind.
func (k RuleKind) String() string {
	switch k {
	case RuleLiteral:
		return "literal"
	case RuleRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// Rule is one compiled allow or deny entry.
type Rule struct {
	Pattern *regexp.Regexp
	Source  string // the configuration key it was compiled from
	Kind    RuleKind
}

var regexEntry = regexp.MustCompile(`^/(.+)/([dgimsuvy]*)$`)

// CompileRule compiles a single configuration entry. Regex entries map the
// i, m and s flags onto inline flags; d, g, u, v and y are ignored.
func CompileRule(entry string) (Rule, error) {
	if m := regexEntry.FindStringSubmatch(entry); m != nil {
		re, err := regexp.Compile(withFlags(m[1], m[2]))
		if err != nil {
			return Rule{}, fmt.Errorf("%w %q: %v", ErrInvalidRule, entry, err)
		}
		return Rule{Pattern: re, Source: entry, Kind: RuleRegex}, nil
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(entry) + `\b`)
	return Rule{Pattern: re, Source: entry, Kind: RuleLiteral}, nil
}

func withFlags(body, flags string) string {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		}
	}
	if inline.Len() == 0 {
		return body
	}
	return "(?" + inline.String() + ")" + body
}

// CompileRules compiles every enabled entry of a configuration map. Keys are
// visited in sorted order so identical maps always produce identical rules.
func CompileRules(entries map[string]bool) ([]Rule, error) {
	keys := make([]string, 0, len(entries))
	for k, enabled := range entries {
		if enabled && strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	rules := make([]Rule, 0, len(keys))
	for _, k := range keys {
		r, err := CompileRule(k)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// matches reports whether r matches commandLine. For PowerShell a line that
// starts with "(" gets a second try without it, so "(Get-Content x).Length"
// is judged like "Get-Content x).Length".
func (r Rule) matches(commandLine string, powershell bool) bool {
	if r.Pattern.MatchString(commandLine) {
		return true
	}
	if powershell && strings.HasPrefix(commandLine, "(") {
		return r.Pattern.MatchString(commandLine[1:])
	}
	return false
}
