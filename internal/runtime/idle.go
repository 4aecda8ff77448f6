package runtime

import (
	"context"
	"sync"
	"time"
)

// IdleState is the prompt/command phase inferred from markers.
type IdleState int

const (
	IdleInitial IdleState = iota
	IdlePrompt
	IdleExecuting
	IdlePromptAfterExecuting
)

// String returns the string representation of an IdleState.
func (s IdleState) String() string {
	switch s {
	case IdleInitial:
		return "initial"
	case IdlePrompt:
		return "prompt"
	case IdleExecuting:
		return "executing"
	case IdlePromptAfterExecuting:
		return "prompt_after_executing"
	default:
		return "unknown"
	}
}

// IdleTracker signals when a terminal has gone quiet on a fresh prompt that
// follows an executed command. Data that arrives while idle-eligible re-arms
// the timer; any other state cancels it.
type IdleTracker struct {
	mu      sync.Mutex
	state   IdleState
	scanner MarkerScanner
	delay   time.Duration
	timer   *time.Timer
	idle    chan struct{}
	fired   bool
	stopped bool
}

// NewIdleTracker creates a tracker that fires after delay of quiet on a prompt.
func NewIdleTracker(delay time.Duration) *IdleTracker {
	return &IdleTracker{
		delay: delay,
		idle:  make(chan struct{}),
	}
}

// Idle is closed once the terminal is idle on a prompt after a command.
func (t *IdleTracker) Idle() <-chan struct{} {
	return t.idle
}

// State returns the current phase.
func (t *IdleTracker) State() IdleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe feeds a chunk of raw terminal data.
func (t *IdleTracker) Observe(data []byte) {
	markers := t.scanner.Markers(data)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return
	}
	for _, m := range markers {
		switch m.Kind {
		case MarkerPromptStart:
			if t.state == IdleExecuting || t.state == IdlePromptAfterExecuting {
				t.state = IdlePromptAfterExecuting
			} else {
				t.state = IdlePrompt
			}
		case MarkerExecuted, MarkerFinished:
			// D counts as executed; some shells never emit C.
			t.state = IdleExecuting
		}
	}

	if t.state != IdlePromptAfterExecuting {
		if t.timer != nil {
			t.timer.Stop()
		}
		return
	}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, t.fire)
		return
	}
	t.timer.Reset(t.delay)
}

func (t *IdleTracker) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired || t.state != IdlePromptAfterExecuting {
		return
	}
	t.fired = true
	close(t.idle)
}

// Track feeds every chunk from data until it is closed or ctx ends.
func (t *IdleTracker) Track(ctx context.Context, data <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-data:
			if !ok {
				return
			}
			t.Observe(chunk)
		}
	}
}

// Stop cancels any pending timer.
func (t *IdleTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Activity records when data last arrived so callers can wait for silence.
type Activity struct {
	mu   sync.Mutex
	last time.Time
}

// NewActivity creates an Activity whose clock starts now.
func NewActivity() *Activity {
	return &Activity{last: time.Now()}
}

// Touch records data arrival.
func (a *Activity) Touch() {
	a.mu.Lock()
	a.last = time.Now()
	a.mu.Unlock()
}

// LastActive returns the time of the last Touch.
func (a *Activity) LastActive() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// WaitQuiet blocks until no data has arrived for d, or ctx ends.
func (a *Activity) WaitQuiet(ctx context.Context, d time.Duration) error {
	for {
		wait := d - time.Since(a.LastActive())
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
