package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lazyvibe/vibeshell/internal/model"
)

const (
	// DefaultIntegrationTimeout bounds the wait for shell integration.
	DefaultIntegrationTimeout = 5 * time.Second
	// DefaultRichGrace is how long the rich detection marker may lag integration.
	DefaultRichGrace = 200 * time.Millisecond
)

// ErrTerminalExited is returned when a terminal dies before it became usable.
var ErrTerminalExited = errors.New("terminal exited during startup")

// pagerEnv keeps programs from waiting on an interactive pager.
var pagerEnv = map[string]string{
	"PAGER":         "cat",
	"GIT_PAGER":     "cat",
	"MANPAGER":      "cat",
	"SYSTEMD_PAGER": "",
	"LESS":          "-FRX",
}

// TierMemory remembers the integration quality most recently observed.
type TierMemory struct {
	mu  sync.Mutex
	q   model.IntegrationQuality
	set bool
}

// NewTierMemory creates an empty TierMemory.
func NewTierMemory() *TierMemory {
	return &TierMemory{}
}

// Last returns the last recorded quality.
func (m *TierMemory) Last() (model.IntegrationQuality, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q, m.set
}

// Record stores q as the last observed quality.
func (m *TierMemory) Record(q model.IntegrationQuality) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.q = q
	m.set = true
}

// ToolTerminal is a registered terminal and the integration quality it showed
// at creation.
type ToolTerminal struct {
	Terminal
	Quality     model.IntegrationQuality
	SessionID   string
	ExecutionID string
	Background  bool
}

// RegistryOptions tunes terminal creation.
type RegistryOptions struct {
	IntegrationTimeout time.Duration
	RichGrace          time.Duration
	// Dir is the starting directory for new terminals.
	Dir string
	// Env is added on top of the pager overrides.
	Env map[string]string
	// AlwaysDetect waits for integration on every new terminal, even after
	// one timed out. Set it when the factory injects the integration script.
	AlwaysDetect bool
}

func (o RegistryOptions) withDefaults() RegistryOptions {
	if o.IntegrationTimeout <= 0 {
		o.IntegrationTimeout = DefaultIntegrationTimeout
	}
	if o.RichGrace <= 0 {
		o.RichGrace = DefaultRichGrace
	}
	return o
}

// Registry maps sessions and executions to terminals.
type Registry struct {
	mu         sync.RWMutex
	factory    TerminalFactory
	tiers      *TierMemory
	log        *zap.Logger
	opts       RegistryOptions
	sessions   map[string]*ToolTerminal
	executions map[string]*ToolTerminal
}

// NewRegistry creates a registry. tiers may be shared between registries.
func NewRegistry(factory TerminalFactory, tiers *TierMemory, log *zap.Logger, opts RegistryOptions) *Registry {
	if tiers == nil {
		tiers = NewTierMemory()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		factory:    factory,
		tiers:      tiers,
		log:        log,
		opts:       opts.withDefaults(),
		sessions:   make(map[string]*ToolTerminal),
		executions: make(map[string]*ToolTerminal),
	}
}

// CreateTerminal starts a hidden terminal, detects its integration quality and
// registers it under sessionID and executionID.
func (r *Registry) CreateTerminal(ctx context.Context, sessionID, executionID string, background bool) (*ToolTerminal, error) {
	env := make(map[string]string, len(pagerEnv)+len(r.opts.Env))
	for k, v := range pagerEnv {
		env[k] = v
	}
	for k, v := range r.opts.Env {
		env[k] = v
	}

	term, err := r.factory.CreateTerminal(ctx, TerminalOptions{Name: sessionID, Env: env, Dir: r.opts.Dir})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("create terminal: %w", err)
	}

	quality, err := r.detect(ctx, term)
	if err != nil {
		_ = term.Dispose()
		return nil, err
	}
	r.tiers.Record(quality)

	tt := &ToolTerminal{
		Terminal:    term,
		Quality:     quality,
		SessionID:   sessionID,
		ExecutionID: executionID,
		Background:  background,
	}
	r.mu.Lock()
	if !background {
		r.sessions[sessionID] = tt
	}
	r.executions[executionID] = tt
	r.mu.Unlock()

	r.log.Info("terminal created",
		zap.String("session", sessionID),
		zap.String("execution", executionID),
		zap.String("terminal", term.ID()),
		zap.Stringer("quality", quality),
		zap.Bool("background", background))

	go func() {
		<-term.Done()
		r.drop(tt)
	}()
	return tt, nil
}

// detect waits for integration and the rich detection marker.
func (r *Registry) detect(ctx context.Context, term Terminal) (model.IntegrationQuality, error) {
	if last, ok := r.tiers.Last(); ok && last == model.QualityNone && !r.opts.AlwaysDetect {
		if err := ctx.Err(); err != nil {
			return model.QualityNone, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return model.QualityNone, nil
	}

	data, release := term.Subscribe()
	defer release()

	rich := make(chan struct{})
	go watchRichMarker(data, History(term), rich)

	timer := time.NewTimer(r.opts.IntegrationTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return model.QualityNone, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-term.Done():
		return model.QualityNone, ErrTerminalExited
	case <-rich:
		return model.QualityRich, nil
	case <-timer.C:
		r.log.Debug("shell integration timed out", zap.String("terminal", term.ID()))
		return model.QualityNone, nil
	case <-term.IntegrationReady():
	}

	grace := time.NewTimer(r.opts.RichGrace)
	defer grace.Stop()
	select {
	case <-ctx.Done():
		return model.QualityNone, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-rich:
		return model.QualityRich, nil
	case <-grace.C:
		return model.QualityBasic, nil
	}
}

// History returns the raw output t has buffered, or nil when t keeps none.
func History(t Terminal) []byte {
	if h, ok := t.(interface{ History() []byte }); ok {
		return h.History()
	}
	return nil
}

// watchRichMarker closes found when the rich detection marker shows up in
// history or data. It returns when data is closed.
func watchRichMarker(data <-chan []byte, history []byte, found chan<- struct{}) {
	marker := []byte(RichDetectionMarker)
	seen := bytes.Contains(history, marker)
	if seen {
		close(found)
	}
	var carry []byte
	for chunk := range data {
		if seen {
			continue
		}
		window := append(carry, chunk...)
		if bytes.Contains(window, marker) {
			seen = true
			close(found)
			continue
		}
		if keep := len(marker) - 1; len(window) > keep {
			window = window[len(window)-keep:]
		}
		carry = append(carry[:0:0], window...)
	}
}

// GetOrCreate returns the live foreground terminal of sessionID, creating one
// when needed. executionID is only registered for a new terminal; a reused
// terminal stays reachable under the id it was created with.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID, executionID string) (*ToolTerminal, bool, error) {
	if tt, ok := r.Lookup(sessionID); ok {
		return tt, false, nil
	}
	tt, err := r.CreateTerminal(ctx, sessionID, executionID, false)
	return tt, err == nil, err
}

// Lookup returns the live foreground terminal of sessionID.
func (r *Registry) Lookup(sessionID string) (*ToolTerminal, bool) {
	r.mu.RLock()
	tt, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok || isDone(tt) {
		return nil, false
	}
	return tt, true
}

// LookupExecution returns the terminal that ran executionID.
func (r *Registry) LookupExecution(executionID string) (*ToolTerminal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tt, ok := r.executions[executionID]
	return tt, ok
}

// Sessions returns the ids of sessions with a foreground terminal.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close disposes every terminal of sessionID.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	var victims []*ToolTerminal
	for id, tt := range r.executions {
		if tt.SessionID == sessionID {
			victims = append(victims, tt)
			delete(r.executions, id)
		}
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	return disposeAll(victims)
}

// CloseAll disposes every terminal in parallel.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	victims := make([]*ToolTerminal, 0, len(r.executions))
	for _, tt := range r.executions {
		victims = append(victims, tt)
	}
	for _, tt := range r.sessions {
		victims = append(victims, tt)
	}
	r.sessions = make(map[string]*ToolTerminal)
	r.executions = make(map[string]*ToolTerminal)
	r.mu.Unlock()
	return disposeAll(victims)
}

func disposeAll(terms []*ToolTerminal) error {
	seen := make(map[Terminal]bool, len(terms))
	var g errgroup.Group
	for _, tt := range terms {
		if seen[tt.Terminal] {
			continue
		}
		seen[tt.Terminal] = true
		t := tt.Terminal
		g.Go(t.Dispose)
	}
	return g.Wait()
}

func (r *Registry) drop(tt *ToolTerminal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[tt.SessionID] == tt {
		delete(r.sessions, tt.SessionID)
	}
	for id, other := range r.executions {
		if other == tt {
			delete(r.executions, id)
		}
	}
	r.log.Debug("terminal exited", zap.String("session", tt.SessionID), zap.String("terminal", tt.ID()))
}

func isDone(t Terminal) bool {
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}

func newID(name string) string {
	id := uuid.NewString()
	if name == "" {
		return id
	}
	return name + "-" + id[:8]
}
