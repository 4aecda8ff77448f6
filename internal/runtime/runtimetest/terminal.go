// Package runtimetest provides scripted terminals for tests.
package runtimetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// Terminal is an in-memory runtime.Terminal driven by the test.
type Terminal struct {
	id    string
	bcast *runtime.Broadcaster

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	mu       sync.Mutex
	cwd      string
	sent     []string
	commands []string
	history  []byte
	disposed bool

	// OnSend runs after SendText records its text.
	OnSend func(t *Terminal, text string)
	// OnExecute runs in its own goroutine after ExecuteCommand.
	OnExecute func(t *Terminal, ex *runtime.Execution)
}

// NewTerminal creates a terminal without integration.
func NewTerminal(id string) *Terminal {
	return &Terminal{
		id:    id,
		bcast: runtime.NewBroadcaster(),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// ID returns the terminal id.
func (t *Terminal) ID() string { return t.id }

// Emit publishes raw data to subscribers and records it in History.
func (t *Terminal) Emit(data string) {
	t.mu.Lock()
	t.history = append(t.history, data...)
	t.mu.Unlock()
	t.bcast.Publish([]byte(data))
}

// Marker renders an OSC 633 sequence.
func Marker(kind runtime.MarkerKind, params ...string) string {
	body := string(kind)
	if len(params) > 0 {
		body += ";" + strings.Join(params, ";")
	}
	return fmt.Sprintf("\x1b]633;%s\x07", body)
}

// EmitMarker publishes one marker sequence.
func (t *Terminal) EmitMarker(kind runtime.MarkerKind, params ...string) {
	t.Emit(Marker(kind, params...))
}

// MarkReady closes IntegrationReady.
func (t *Terminal) MarkReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}

// SetCwd sets the reported working directory.
func (t *Terminal) SetCwd(dir string) {
	t.mu.Lock()
	t.cwd = dir
	t.mu.Unlock()
}

// Sent returns every SendText payload.
func (t *Terminal) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

// Commands returns every command issued through ExecuteCommand.
func (t *Terminal) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

// Disposed reports whether Dispose was called.
func (t *Terminal) Disposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

// Subscribers returns the number of live subscriptions.
func (t *Terminal) Subscribers() int { return t.bcast.Subscribers() }

// SendText records text and invokes OnSend.
func (t *Terminal) SendText(text string, addNewLine bool) error {
	select {
	case <-t.done:
		return runtime.ErrTerminalClosed
	default:
	}
	if addNewLine {
		text += "\r"
	}
	t.mu.Lock()
	t.sent = append(t.sent, text)
	hook := t.OnSend
	t.mu.Unlock()
	if hook != nil {
		hook(t, text)
	}
	return nil
}

// Subscribe returns the raw data stream.
func (t *Terminal) Subscribe() (<-chan []byte, func()) { return t.bcast.Subscribe() }

// IntegrationReady is closed by MarkReady.
func (t *Terminal) IntegrationReady() <-chan struct{} { return t.ready }

// Integration returns t once ready.
func (t *Terminal) Integration() runtime.ShellIntegration {
	select {
	case <-t.ready:
		return t
	default:
		return nil
	}
}

// ExecuteCommand records commandLine and hands a new execution to OnExecute.
func (t *Terminal) ExecuteCommand(commandLine string) (*runtime.Execution, error) {
	ex := runtime.NewExecution(commandLine)
	t.mu.Lock()
	t.commands = append(t.commands, commandLine)
	hook := t.OnExecute
	t.mu.Unlock()
	if hook != nil {
		go hook(t, ex)
	}
	return ex, nil
}

// Cwd returns the directory set with SetCwd.
func (t *Terminal) Cwd() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwd
}

// History returns everything emitted so far.
func (t *Terminal) History() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.history...)
}

// Done is closed by Dispose.
func (t *Terminal) Done() <-chan struct{} { return t.done }

// Dispose closes the terminal.
func (t *Terminal) Dispose() error {
	t.mu.Lock()
	t.disposed = true
	t.mu.Unlock()
	t.doneOnce.Do(func() {
		t.bcast.Close()
		close(t.done)
	})
	return nil
}

// Factory hands out scripted terminals.
type Factory struct {
	mu      sync.Mutex
	created []*Terminal
	opts    []runtime.TerminalOptions

	// New builds the next terminal; NewTerminal is used when nil.
	New func(opts runtime.TerminalOptions) *Terminal
	// Err fails every creation when set.
	Err error
}

// CreateTerminal implements runtime.TerminalFactory.
func (f *Factory) CreateTerminal(ctx context.Context, opts runtime.TerminalOptions) (runtime.Terminal, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	n := len(f.created)
	f.mu.Unlock()

	var t *Terminal
	if f.New != nil {
		t = f.New(opts)
	} else {
		t = NewTerminal(fmt.Sprintf("term-%d", n+1))
	}
	f.mu.Lock()
	f.created = append(f.created, t)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	return t, nil
}

// Created returns the terminals created so far.
func (f *Factory) Created() []*Terminal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Terminal(nil), f.created...)
}

// Options returns the options of every creation.
func (f *Factory) Options() []runtime.TerminalOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runtime.TerminalOptions(nil), f.opts...)
}
