package runtime

import (
	"io"
	"strings"
	"sync"

	"github.com/hinshun/vt10x"
)

const (
	// DefaultScreenCols is the width of the off-screen buffer.
	DefaultScreenCols = 160
	// DefaultScreenRows is the height of the off-screen buffer. Output that
	// scrolls past it is lost.
	DefaultScreenRows = 500
)

// Screen is an off-screen terminal emulator. Cursor movement and overwrites
// are resolved the way a visible terminal would render them.
type Screen struct {
	mu   sync.Mutex
	term vt10x.Terminal
	cols int
	rows int
}

// NewScreen creates a screen of the given size; non-positive values use defaults.
func NewScreen(cols, rows int) *Screen {
	if cols <= 0 {
		cols = DefaultScreenCols
	}
	if rows <= 0 {
		rows = DefaultScreenRows
	}
	return &Screen{
		term: vt10x.New(vt10x.WithWriter(io.Discard), vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

// Write feeds raw terminal data to the emulator.
func (s *Screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term.Write(p)
}

// Lines returns every row with trailing blanks removed.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.Lock()
	defer s.term.Unlock()

	lines := make([]string, 0, s.rows)
	var b strings.Builder
	for y := 0; y < s.rows; y++ {
		b.Reset()
		for x := 0; x < s.cols; x++ {
			ch := s.term.Cell(x, y).Char
			if ch == 0 {
				ch = ' '
			}
			b.WriteRune(ch)
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return lines
}

// Text renders the screen with empty leading and trailing lines trimmed.
func (s *Screen) Text() string {
	return strings.Join(TrimEmptyLines(s.Lines()), "\n")
}
