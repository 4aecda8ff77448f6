package strategy

import (
	"strings"
	"sync/atomic"

	"github.com/lazyvibe/vibeshell/internal/runtime"
)

// tap feeds a terminal's raw data into the idle machinery and screens.
type tap struct {
	activity *runtime.Activity
	trackers []*runtime.IdleTracker
	pre      *runtime.Screen
	capture  atomic.Pointer[runtime.Screen]
	cols     int
	rows     int
}

// promptHistory is how much buffered output seeds prompt detection.
const promptHistory = 8 * 1024

func startTap(term runtime.Terminal, data <-chan []byte, opts Options, trackers ...*runtime.IdleTracker) *tap {
	t := &tap{
		activity: runtime.NewActivity(),
		trackers: trackers,
		pre:      runtime.NewScreen(opts.ScreenCols, opts.ScreenRows),
		cols:     opts.ScreenCols,
		rows:     opts.ScreenRows,
	}
	history := runtime.History(term)
	if len(history) > promptHistory {
		history = history[len(history)-promptHistory:]
	}
	_, _ = t.pre.Write(history)
	go t.run(data)
	return t
}

// run ends when the subscription is released.
func (t *tap) run(data <-chan []byte) {
	for chunk := range data {
		t.activity.Touch()
		if sc := t.capture.Load(); sc != nil {
			_, _ = sc.Write(chunk)
		} else {
			_, _ = t.pre.Write(chunk)
		}
		for _, tr := range t.trackers {
			tr.Observe(chunk)
		}
	}
}

// startCapture begins rendering into a fresh screen and returns the prompt
// line seen so far.
func (t *tap) startCapture() (*runtime.Screen, string) {
	lines := runtime.TrimEmptyLines(t.pre.Lines())
	prompt := ""
	if len(lines) > 0 {
		prompt = strings.TrimSpace(lines[len(lines)-1])
	}
	sc := runtime.NewScreen(t.cols, t.rows)
	t.capture.Store(sc)
	return sc, prompt
}
