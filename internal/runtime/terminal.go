package runtime

import (
	"errors"
	"sync"
)

var (
	// ErrCancelled marks an execution or terminal creation stopped by its context.
	ErrCancelled = errors.New("execution cancelled")
	// ErrNotReady is returned when shell integration is needed but not available.
	ErrNotReady = errors.New("shell integration not available")
	// ErrTerminalClosed is returned when writing to a terminal that has exited.
	ErrTerminalClosed = errors.New("terminal closed")
)

// Terminal is the host terminal capability the execution strategies drive.
type Terminal interface {
	// ID returns the terminal's unique identifier.
	ID() string
	// SendText writes text as keystrokes, followed by Enter when addNewLine is set.
	SendText(text string, addNewLine bool) error
	// Subscribe returns the raw data stream and its release function.
	Subscribe() (<-chan []byte, func())
	// IntegrationReady is closed once shell integration has been observed.
	IntegrationReady() <-chan struct{}
	// Integration returns the shell integration, or nil before it is ready.
	Integration() ShellIntegration
	// Cwd returns the last working directory reported by the shell, if any.
	Cwd() string
	// Done is closed when the terminal exits.
	Done() <-chan struct{}
	// Dispose kills the shell and releases the terminal.
	Dispose() error
}

// ShellIntegration runs commands with start/end detection.
type ShellIntegration interface {
	ExecuteCommand(commandLine string) (*Execution, error)
}

// Execution is one command issued through shell integration.
type Execution struct {
	commandLine string
	output      *chunkQueue
	ended       chan struct{}
	endOnce     sync.Once

	mu       sync.Mutex
	exitCode *int
	err      error
}

// NewExecution creates an execution for commandLine. Output is delivered until
// End is called.
func NewExecution(commandLine string) *Execution {
	return &Execution{
		commandLine: commandLine,
		output:      newChunkQueue(),
		ended:       make(chan struct{}),
	}
}

// CommandLine returns the command that was issued.
func (e *Execution) CommandLine() string {
	return e.commandLine
}

// Output streams the command's own output. It is closed after End once the
// backlog has been delivered, or right away after Discard.
func (e *Execution) Output() <-chan []byte {
	return e.output.out
}

// Ended is closed by the end-of-execution event.
func (e *Execution) Ended() <-chan struct{} {
	return e.ended
}

// ExitCode returns the reported exit code, if the shell sent one.
func (e *Execution) ExitCode() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exitCode == nil {
		return 0, false
	}
	return *e.exitCode, true
}

// Err returns a stream failure recorded with Fail.
func (e *Execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Write appends command output.
func (e *Execution) Write(p []byte) (int, error) {
	if !e.output.push(p) {
		return 0, ErrTerminalClosed
	}
	return len(p), nil
}

// End fires the end-of-execution event. Later calls are ignored.
func (e *Execution) End(exitCode *int) {
	e.endOnce.Do(func() {
		e.mu.Lock()
		e.exitCode = exitCode
		e.mu.Unlock()
		e.output.close()
		close(e.ended)
	})
}

// Fail records a stream failure and ends the execution.
func (e *Execution) Fail(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.End(nil)
}

// Discard tells the execution nobody is reading Output any more.
func (e *Execution) Discard() {
	e.output.abandon()
}
