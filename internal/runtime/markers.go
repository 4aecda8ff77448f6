package runtime

import (
	"bytes"
	"strings"
)

// MarkerKind is the letter identifying a shell integration sequence.
type MarkerKind byte

const (
	MarkerPromptStart  MarkerKind = 'A'
	MarkerCommandStart MarkerKind = 'B'
	MarkerExecuted     MarkerKind = 'C'
	MarkerFinished     MarkerKind = 'D'
	MarkerCommandLine  MarkerKind = 'E'
	MarkerProperty     MarkerKind = 'P'
)

// RichDetectionMarker is the property payload announcing trusted command detection.
const RichDetectionMarker = "633;P;HasRichCommandDetection=True"

// maxPendingSequence bounds how much of an unterminated OSC sequence is held
// back waiting for the next chunk.
const maxPendingSequence = 4096

// Marker is one decoded "ESC ] 633|133 ; <kind> [; params] ST" sequence.
type Marker struct {
	Kind   MarkerKind
	Params []string
}

// Param returns the i-th parameter or "".
func (m Marker) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Property splits a P marker parameter into key and value.
func (m Marker) Property() (key, value string, ok bool) {
	if m.Kind != MarkerProperty || len(m.Params) == 0 {
		return "", "", false
	}
	return strings.Cut(strings.Join(m.Params, ";"), "=")
}

// Token is either a run of plain terminal data or a marker.
type Token struct {
	Text   []byte
	Marker *Marker
}

// MarkerScanner extracts shell integration markers from a raw terminal stream.
// Sequences split across chunks are held back until their terminator arrives.
// Other OSC sequences are passed through as text.
type MarkerScanner struct {
	pending []byte
}

// Scan consumes data and returns its tokens in stream order.
func (s *MarkerScanner) Scan(data []byte) []Token {
	input := data
	if len(s.pending) > 0 {
		input = append(s.pending, data...)
		s.pending = nil
	}

	var tokens []Token
	textStart := 0
	i := 0
	for i < len(input) {
		if input[i] != 0x1b {
			i++
			continue
		}
		if i+1 >= len(input) {
			s.hold(input[i:])
			input = input[:i]
			break
		}
		if input[i+1] != ']' {
			i++
			continue
		}
		end, termLen := oscEnd(input, i+2)
		if end == -1 {
			if len(input)-i > maxPendingSequence {
				i++
				continue
			}
			s.hold(input[i:])
			input = input[:i]
			break
		}
		m, ok := decodeMarker(input[i+2 : end])
		if !ok {
			i = end + termLen
			continue
		}
		if i > textStart {
			tokens = append(tokens, Token{Text: input[textStart:i]})
		}
		tokens = append(tokens, Token{Marker: &m})
		i = end + termLen
		textStart = i
	}
	if textStart < len(input) {
		tokens = append(tokens, Token{Text: input[textStart:]})
	}
	return tokens
}

// Markers is Scan without the text tokens.
func (s *MarkerScanner) Markers(data []byte) []Marker {
	var out []Marker
	for _, tok := range s.Scan(data) {
		if tok.Marker != nil {
			out = append(out, *tok.Marker)
		}
	}
	return out
}

func (s *MarkerScanner) hold(b []byte) {
	s.pending = append([]byte(nil), b...)
}

// oscEnd finds the BEL or ESC \ terminating an OSC body starting at start.
func oscEnd(input []byte, start int) (int, int) {
	if start >= len(input) {
		return -1, 0
	}
	bel := bytes.IndexByte(input[start:], 0x07)
	st := bytes.Index(input[start:], []byte{0x1b, '\\'})
	if bel == -1 && st == -1 {
		return -1, 0
	}
	if bel != -1 && (st == -1 || bel < st) {
		return start + bel, 1
	}
	return start + st, 2
}

func decodeMarker(body []byte) (Marker, bool) {
	parts := strings.Split(string(body), ";")
	if len(parts) < 2 {
		return Marker{}, false
	}
	if parts[0] != "633" && parts[0] != "133" {
		return Marker{}, false
	}
	if len(parts[1]) != 1 {
		return Marker{}, false
	}
	kind := MarkerKind(parts[1][0])
	switch kind {
	case MarkerPromptStart, MarkerCommandStart, MarkerExecuted, MarkerFinished, MarkerCommandLine, MarkerProperty:
	default:
		return Marker{}, false
	}
	return Marker{Kind: kind, Params: parts[2:]}, true
}
