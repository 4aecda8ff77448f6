package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnknownExecution is returned for an id the tracker does not know.
var ErrUnknownExecution = errors.New("unknown background execution")

// BackgroundInfo describes a background execution.
type BackgroundInfo struct {
	ID          string
	CommandLine string
	TerminalID  string
	StartedAt   time.Time
	Finished    bool
	// ExitCode is set when the shell reported one.
	ExitCode *int
}

type backgroundExecution struct {
	info    BackgroundInfo
	term    *ToolTerminal
	release func()
	stop    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	buf strings.Builder
}

func (b *backgroundExecution) append(p []byte) {
	b.mu.Lock()
	b.buf.Write(p)
	b.mu.Unlock()
}

func (b *backgroundExecution) snapshot() (string, BackgroundInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String(), b.info
}

// BackgroundTracker accumulates output of commands that run without blocking
// the caller.
type BackgroundTracker struct {
	mu     sync.Mutex
	execs  map[string]*backgroundExecution
	log    *zap.Logger
	onDone func(BackgroundInfo)
}

// NewBackgroundTracker creates a tracker. onDone, when set, is called once for
// every execution whose end is observed.
func NewBackgroundTracker(log *zap.Logger, onDone func(BackgroundInfo)) *BackgroundTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &BackgroundTracker{
		execs:  make(map[string]*backgroundExecution),
		log:    log,
		onDone: onDone,
	}
}

// Start issues commandLine on t and returns the execution id. The terminal's
// execution id is reused when it has one.
func (bt *BackgroundTracker) Start(t *ToolTerminal, commandLine string) (string, error) {
	id := t.ExecutionID
	if id == "" {
		id = uuid.NewString()
	}
	data, release := t.Subscribe()
	b := &backgroundExecution{
		info: BackgroundInfo{
			ID:          id,
			CommandLine: commandLine,
			TerminalID:  t.ID(),
			StartedAt:   time.Now(),
		},
		term:    t,
		release: release,
		stop:    make(chan struct{}),
	}
	go func() {
		for chunk := range data {
			b.append(chunk)
		}
	}()

	var ended <-chan struct{}
	var ex *Execution
	if integration := t.Integration(); integration != nil {
		var err error
		ex, err = integration.ExecuteCommand(commandLine)
		if err != nil {
			release()
			return "", fmt.Errorf("execute in background: %w", err)
		}
		ex.Discard()
		ended = ex.Ended()
	} else if err := t.SendText(commandLine, true); err != nil {
		release()
		return "", fmt.Errorf("send background command: %w", err)
	}

	bt.mu.Lock()
	bt.execs[id] = b
	bt.mu.Unlock()
	bt.log.Info("background execution started", zap.String("execution", id), zap.String("terminal", t.ID()))

	go bt.watch(b, ex, ended)
	return id, nil
}

func (bt *BackgroundTracker) watch(b *backgroundExecution, ex *Execution, ended <-chan struct{}) {
	select {
	case <-b.stop:
		return
	case <-b.term.Done():
	case <-ended:
	}

	b.mu.Lock()
	b.info.Finished = true
	if ex != nil {
		if code, ok := ex.ExitCode(); ok {
			b.info.ExitCode = &code
		}
	}
	info := b.info
	b.mu.Unlock()

	bt.log.Info("background execution finished", zap.String("execution", info.ID))
	if bt.onDone != nil {
		bt.onDone(info)
	}
}

// Output returns the sanitized output accumulated so far.
func (bt *BackgroundTracker) Output(id string) (string, error) {
	b, err := bt.get(id)
	if err != nil {
		return "", err
	}
	out, _ := b.snapshot()
	return SanitizeOutput(out), nil
}

// Info returns the state of one execution.
func (bt *BackgroundTracker) Info(id string) (BackgroundInfo, error) {
	b, err := bt.get(id)
	if err != nil {
		return BackgroundInfo{}, err
	}
	_, info := b.snapshot()
	return info, nil
}

// List returns every execution, oldest first.
func (bt *BackgroundTracker) List() []BackgroundInfo {
	bt.mu.Lock()
	list := make([]BackgroundInfo, 0, len(bt.execs))
	for _, b := range bt.execs {
		_, info := b.snapshot()
		list = append(list, info)
	}
	bt.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// Stop forgets the execution and disposes its terminal.
func (bt *BackgroundTracker) Stop(id string) error {
	bt.mu.Lock()
	b, ok := bt.execs[id]
	delete(bt.execs, id)
	bt.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExecution, id)
	}
	return bt.stop(b)
}

// Close stops every execution.
func (bt *BackgroundTracker) Close() error {
	bt.mu.Lock()
	execs := bt.execs
	bt.execs = make(map[string]*backgroundExecution)
	bt.mu.Unlock()

	var errs []error
	for _, b := range execs {
		if err := bt.stop(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (bt *BackgroundTracker) stop(b *backgroundExecution) error {
	var err error
	b.once.Do(func() {
		close(b.stop)
		b.release()
		err = b.term.Dispose()
	})
	return err
}

func (bt *BackgroundTracker) get(id string) (*backgroundExecution, error) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	b, ok := bt.execs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecution, id)
	}
	return b, nil
}
