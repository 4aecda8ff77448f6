package approval

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/shell"
)

// Config is the allow/deny configuration. Keys wrapped in slashes are regular
// expressions, other keys are literal command prefixes. Only entries set to
// true take part.
type Config struct {
	Allow map[string]bool `yaml:"allow"`
	Deny  map[string]bool `yaml:"deny"`
}

// Engine holds the compiled allow and deny rule sets.
type Engine struct {
	mu    sync.RWMutex
	allow []Rule
	deny  []Rule
	log   *zap.Logger
}

// NewEngine compiles cfg into a new Engine.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{log: log}
	if err := e.UpdateConfiguration(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateConfiguration rebuilds both rule sets from cfg. When an entry fails to
// compile the error is returned and the previous rules stay in force.
func (e *Engine) UpdateConfiguration(cfg Config) error {
	allow, err := CompileRules(cfg.Allow)
	if err != nil {
		return fmt.Errorf("compile allow list: %w", err)
	}
	deny, err := CompileRules(cfg.Deny)
	if err != nil {
		return fmt.Errorf("compile deny list: %w", err)
	}

	e.mu.Lock()
	e.allow = allow
	e.deny = deny
	e.mu.Unlock()

	e.log.Debug("auto-approve rules compiled",
		zap.Int("allow", len(allow)),
		zap.Int("deny", len(deny)))
	return nil
}

// IsApproved reports whether commandLine is covered by the allow rules and by
// no deny rule, using POSIX matching.
func (e *Engine) IsApproved(commandLine string) bool {
	return e.IsApprovedFor(commandLine, shell.DialectSh)
}

// IsApprovedFor is IsApproved with dialect-specific matching.
func (e *Engine) IsApprovedFor(commandLine string, d shell.Dialect) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pwsh := d.IsPowerShell()

	for _, r := range e.deny {
		if r.matches(commandLine, pwsh) {
			return false
		}
	}
	for _, r := range e.allow {
		if r.matches(commandLine, pwsh) {
			return true
		}
	}
	return false
}

// isDenied reports whether any deny rule matches commandLine.
func (e *Engine) isDenied(commandLine string, d shell.Dialect) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range e.deny {
		if r.matches(commandLine, d.IsPowerShell()) {
			return true
		}
	}
	return false
}

// Decision is the outcome of evaluating a whole command line.
type Decision struct {
	// AutoApproved is true when the command may run without confirmation.
	AutoApproved bool
	// SubCommands are the non-empty parts found by the splitter.
	SubCommands []string
	// InlineCommands are the substitutions found inside the line.
	InlineCommands []string
	// Denied lists parts matched by a deny rule.
	Denied []string
	// Unapproved lists parts no allow rule covers.
	Unapproved []string
	// Reason explains why confirmation is needed; empty when auto-approved.
	Reason string
}

// Evaluate checks every sub-command and every inline command of commandLine.
// The line is auto-approved only when all of them are approved.
func (e *Engine) Evaluate(commandLine string, d shell.Dialect) Decision {
	dec := Decision{
		SubCommands: shell.NonEmpty(shell.SplitCommandLine(commandLine, d)),
	}
	inline, err := shell.ExtractInlineCommands(commandLine, d)
	dec.InlineCommands = inline

	if strings.TrimSpace(commandLine) == "" {
		dec.Reason = "empty command"
		return dec
	}

	if e.isDenied(commandLine, d) {
		dec.Denied = append(dec.Denied, commandLine)
	}
	candidates := make([]string, 0, len(dec.SubCommands)+len(inline))
	candidates = append(candidates, dec.SubCommands...)
	candidates = append(candidates, inline...)
	for _, c := range candidates {
		if e.isDenied(c, d) {
			dec.Denied = append(dec.Denied, c)
			continue
		}
		if !e.IsApprovedFor(c, d) {
			dec.Unapproved = append(dec.Unapproved, c)
		}
	}

	switch {
	case errors.Is(err, shell.ErrNestingTooDeep):
		dec.Reason = "command substitutions nest too deeply to inspect"
	case len(dec.Denied) > 0:
		dec.Reason = "matched a deny rule: " + strings.Join(dec.Denied, ", ")
	case len(dec.Unapproved) > 0:
		dec.Reason = "not covered by the allow list: " + strings.Join(dec.Unapproved, ", ")
	default:
		dec.AutoApproved = true
	}

	e.log.Debug("evaluated command",
		zap.String("command", commandLine),
		zap.Stringer("dialect", d),
		zap.Bool("auto_approved", dec.AutoApproved),
		zap.String("reason", dec.Reason))
	return dec
}
