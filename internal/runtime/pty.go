// Package runtime drives shell terminals: PTY hosting, shell integration
// markers, idle tracking, session registry and background executions.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-pty"
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/model"
	"github.com/lazyvibe/vibeshell/internal/runtime/driver"
)

// historySize bounds the raw output kept per terminal.
const historySize = 256 * 1024

type execPhase int

const (
	phaseIdle execPhase = iota
	phaseAwaitingStart
	phaseRunning
)

// PTYTerminal is a shell running in a pseudo terminal. A single read loop
// feeds the broadcaster, the history buffer and the marker scanner.
type PTYTerminal struct {
	id     string
	launch *driver.Launch
	log    *zap.Logger

	ptmx pty.Pty
	pCmd *pty.Cmd
	rows int
	cols int

	bcast   *Broadcaster
	history *RingBuffer
	scanner MarkerScanner

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once

	mu      sync.Mutex
	status  model.SessionStatus
	cwd     string
	active  *Execution
	phase   execPhase
	exitErr error
}

// NewPTYTerminal creates a terminal for a prepared launch. Call Start to run it.
func NewPTYTerminal(id string, launch *driver.Launch, log *zap.Logger) *PTYTerminal {
	if log == nil {
		log = zap.NewNop()
	}
	return &PTYTerminal{
		id:      id,
		launch:  launch,
		log:     log.With(zap.String("terminal", id)),
		rows:    DefaultScreenRows,
		cols:    DefaultScreenCols,
		bcast:   NewBroadcaster(),
		history: NewRingBuffer(historySize),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		status:  model.SessionStatusIdle,
	}
}

// SetSize sets the PTY size used at start.
func (t *PTYTerminal) SetSize(rows, cols int) {
	if rows > 0 {
		t.rows = rows
	}
	if cols > 0 {
		t.cols = cols
	}
}

// ID returns the terminal identifier.
func (t *PTYTerminal) ID() string {
	return t.id
}

// Start launches the shell in a new PTY.
func (t *PTYTerminal) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == model.SessionStatusRunning {
		return errors.New("terminal already running")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	ptmx, err := pty.New()
	if err != nil {
		t.status = model.SessionStatusError
		return fmt.Errorf("failed to create pty: %w", err)
	}
	t.ptmx = ptmx

	// pty.Resize takes (width, height).
	_ = t.ptmx.Resize(t.cols, t.rows)

	cmd := t.launch.Cmd
	var args []string
	if len(cmd.Args) > 1 {
		args = cmd.Args[1:]
	}
	commander, ok := ptmx.(interface{ Command(string, ...string) *pty.Cmd })
	if !ok {
		_ = ptmx.Close()
		return errors.New("pty implementation does not support Command creation")
	}
	t.pCmd = commander.Command(cmd.Path, args...)
	t.pCmd.Env = cmd.Env
	t.pCmd.Dir = cmd.Dir

	if err := t.pCmd.Start(); err != nil {
		t.status = model.SessionStatusError
		_ = ptmx.Close()
		t.launch.Cleanup()
		wrapped := fmt.Errorf("start failed: %s: %w", formatCmd(cmd), err)
		t.exitErr = wrapped
		return wrapped
	}
	t.status = model.SessionStatusRunning
	t.log.Debug("terminal started", zap.String("cmd", formatCmd(cmd)), zap.Bool("integration", t.launch.Integrated))

	go t.readLoop()
	go t.waitLoop()
	return nil
}

func formatCmd(cmd *exec.Cmd) string {
	if cmd == nil {
		return ""
	}
	if len(cmd.Args) > 0 {
		return strings.Join(cmd.Args, " ")
	}
	return cmd.Path
}

// readLoop reads the PTY until it fails and fans the data out.
func (t *PTYTerminal) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			_, _ = t.history.Write(data)
			t.consume(data)
			t.bcast.Publish(data)
		}
		if err != nil {
			t.finish(err)
			return
		}
	}
}

// consume routes plain text to the active execution and applies markers.
func (t *PTYTerminal) consume(data []byte) {
	for _, tok := range t.scanner.Scan(data) {
		if tok.Marker == nil {
			t.mu.Lock()
			ex, phase := t.active, t.phase
			t.mu.Unlock()
			if ex != nil && phase == phaseRunning {
				_, _ = ex.Write(tok.Text)
			}
			continue
		}
		t.handleMarker(*tok.Marker)
	}
}

func (t *PTYTerminal) handleMarker(m Marker) {
	t.readyOnce.Do(func() { close(t.ready) })

	t.mu.Lock()
	defer t.mu.Unlock()
	switch m.Kind {
	case MarkerProperty:
		if key, value, ok := m.Property(); ok && key == "Cwd" {
			t.cwd = value
		}
	case MarkerExecuted:
		if t.active != nil && t.phase == phaseAwaitingStart {
			t.phase = phaseRunning
		}
	case MarkerFinished:
		if t.active == nil {
			return
		}
		var code *int
		if c, err := strconv.Atoi(strings.TrimSpace(m.Param(0))); err == nil {
			code = &c
		}
		t.active.End(code)
		t.active = nil
		t.phase = phaseIdle
	}
}

// waitLoop monitors process exit.
func (t *PTYTerminal) waitLoop() {
	err := t.pCmd.Wait()
	t.mu.Lock()
	t.exitErr = err
	t.mu.Unlock()
	// The read side sees EOF once the PTY is closed.
	_ = t.ptmx.Close()
}

func (t *PTYTerminal) finish(err error) {
	t.doneOnce.Do(func() {
		t.mu.Lock()
		if t.status == model.SessionStatusRunning {
			t.status = model.SessionStatusStopped
		}
		if t.active != nil {
			t.active.Fail(fmt.Errorf("%w: %v", ErrTerminalClosed, err))
			t.active = nil
		}
		t.mu.Unlock()
		t.bcast.Close()
		t.launch.Cleanup()
		close(t.done)
		t.log.Debug("terminal exited", zap.Error(err))
	})
}

// SendText writes text to the shell, pressing Enter when addNewLine is set.
func (t *PTYTerminal) SendText(text string, addNewLine bool) error {
	if addNewLine {
		text += "\r"
	}
	return t.write([]byte(text))
}

func (t *PTYTerminal) write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != model.SessionStatusRunning || t.ptmx == nil {
		return ErrTerminalClosed
	}
	_, err := t.ptmx.Write(data)
	return err
}

// Subscribe returns the raw data stream from now on.
func (t *PTYTerminal) Subscribe() (<-chan []byte, func()) {
	return t.bcast.Subscribe()
}

// IntegrationReady is closed on the first shell integration marker.
func (t *PTYTerminal) IntegrationReady() <-chan struct{} {
	return t.ready
}

// Integration returns the terminal itself once markers have been seen.
func (t *PTYTerminal) Integration() ShellIntegration {
	select {
	case <-t.ready:
		return t
	default:
		return nil
	}
}

// ExecuteCommand types commandLine and tracks it until the next D marker.
func (t *PTYTerminal) ExecuteCommand(commandLine string) (*Execution, error) {
	select {
	case <-t.ready:
	default:
		return nil, ErrNotReady
	}
	ex := NewExecution(commandLine)

	t.mu.Lock()
	if t.status != model.SessionStatusRunning {
		t.mu.Unlock()
		return nil, ErrTerminalClosed
	}
	if t.active != nil {
		// Overlapping foreground commands are a caller error; the older
		// execution is ended without an exit code.
		t.active.End(nil)
	}
	t.active = ex
	t.phase = phaseAwaitingStart
	_, err := t.ptmx.Write([]byte(commandLine + "\r"))
	if err != nil {
		t.active = nil
		t.phase = phaseIdle
	}
	t.mu.Unlock()

	if err != nil {
		ex.Fail(err)
		return nil, err
	}
	return ex, nil
}

// Cwd returns the last working directory the shell reported.
func (t *PTYTerminal) Cwd() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwd
}

// Done is closed when the shell exits or the terminal is disposed.
func (t *PTYTerminal) Done() <-chan struct{} {
	return t.done
}

// Status returns the current status.
func (t *PTYTerminal) Status() model.SessionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// History returns the buffered raw output.
func (t *PTYTerminal) History() []byte {
	return t.history.Bytes()
}

// ExitError returns the process exit error, if any.
func (t *PTYTerminal) ExitError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitErr
}

// Dispose kills the shell and closes the PTY.
func (t *PTYTerminal) Dispose() error {
	t.mu.Lock()
	running := t.status == model.SessionStatusRunning
	t.status = model.SessionStatusStopped
	t.mu.Unlock()
	if !running {
		t.finish(errors.New("disposed"))
		return nil
	}

	if t.pCmd != nil && t.pCmd.Process != nil {
		_ = t.pCmd.Process.Kill()
	}
	err := t.ptmx.Close()
	t.finish(errors.New("disposed"))
	return err
}

// TerminalOptions configures a new terminal.
type TerminalOptions struct {
	// Name labels the terminal in logs.
	Name string
	// Env is added to the shell environment.
	Env map[string]string
	// Dir is the starting directory.
	Dir string
}

// TerminalFactory creates terminals for the registry.
type TerminalFactory interface {
	CreateTerminal(ctx context.Context, opts TerminalOptions) (Terminal, error)
}

// PTYFactory starts the configured shell in hidden PTY terminals.
type PTYFactory struct {
	// Shell is the shell executable with optional arguments.
	Shell string
	// Integration injects the shell integration script.
	Integration bool
	Drivers     *driver.Registry
	Log         *zap.Logger
}

// CreateTerminal builds and starts a new PTYTerminal.
func (f *PTYFactory) CreateTerminal(ctx context.Context, opts TerminalOptions) (Terminal, error) {
	drivers := f.Drivers
	if drivers == nil {
		drivers = driver.NewRegistry()
	}
	launch, err := drivers.Build(driver.LaunchOptions{
		Shell:       f.Shell,
		Dir:         opts.Dir,
		Env:         opts.Env,
		Integration: f.Integration,
	})
	if err != nil {
		return nil, fmt.Errorf("build shell command: %w", err)
	}
	t := NewPTYTerminal(newID(opts.Name), launch, f.Log)
	if err := t.Start(ctx); err != nil {
		launch.Cleanup()
		return nil, err
	}
	return t, nil
}
