package isa

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Supported instruction sizes in bytes. Each is a whole number of 16-bit
// granules.
var byteLengths = []int{2, 4, 6, 8, 10}

// ByteLengths returns the instruction sizes the catalog accepts, shortest
// first.
func ByteLengths() []int {
	return append([]int(nil), byteLengths...)
}

// Template is one immutable catalog entry.
type Template struct {
	Pattern    string // one character per bit, '0'/'1' literal, anything else an operand letter
	ByteLength int
	Line       int // grammar line, 0 if built directly

	FormatText   string
	CallbackText string
	Format       *Format
	Callback     *Callback // nil when the template has no side effects

	match []byte
	mask  []byte
}

// NewTemplate builds a template from a bit pattern, a rendering string and
// an optional callback spec. Whitespace inside the pattern is ignored.
func NewTemplate(pattern, format, callback string) (*Template, error) {
	pattern = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, pattern)

	if len(pattern) == 0 || len(pattern)%8 != 0 {
		return nil, grammarErrorf(pattern, nil, "bit pattern length %d is not a multiple of 8", len(pattern))
	}
	byteLength := len(pattern) / 8
	if !slices.Contains(byteLengths, byteLength) {
		return nil, grammarErrorf(pattern, nil, "unsupported instruction length of %d bytes", byteLength)
	}

	t := &Template{
		Pattern:      pattern,
		ByteLength:   byteLength,
		FormatText:   format,
		CallbackText: callback,
		match:        make([]byte, byteLength),
		mask:         make([]byte, byteLength),
	}

	for i := range byteLength {
		var match, mask byte
		for bit := range 8 {
			c := pattern[i*8+bit]
			match <<= 1
			mask <<= 1
			switch c {
			case '1':
				match |= 1
				mask |= 1
			case '0':
				mask |= 1
			}
		}
		t.match[i] = match
		t.mask[i] = mask
	}

	var err error
	if t.Format, err = ParseFormat(format); err != nil {
		return nil, err
	}
	if callback != "" {
		if t.Callback, err = ParseCallback(callback); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTemplate is like NewTemplate but panics on error.
func MustTemplate(pattern, format, callback string) *Template {
	t, err := NewTemplate(pattern, format, callback)
	if err != nil {
		panic(err)
	}
	return t
}

// Matches reports whether every byte of window satisfies
// (window & mask) == literal. The window must be exactly ByteLength long.
func (t *Template) Matches(window []byte) bool {
	if len(window) != t.ByteLength {
		return false
	}
	for i, b := range window {
		if b&t.mask[i] != t.match[i] {
			return false
		}
	}
	return true
}

// MatchBytes returns a copy of the literal byte values.
func (t *Template) MatchBytes() []byte { return append([]byte(nil), t.match...) }

// MaskBytes returns a copy of the byte masks.
func (t *Template) MaskBytes() []byte { return append([]byte(nil), t.mask...) }

// Letters returns the distinct operand letters in declaration order.
func (t *Template) Letters() []byte {
	var letters []byte
	seen := make(map[byte]bool)
	for i := 0; i < len(t.Pattern); i++ {
		c := t.Pattern[i]
		if c == '0' || c == '1' || seen[c] {
			continue
		}
		seen[c] = true
		letters = append(letters, c)
	}
	return letters
}

func (t *Template) String() string {
	if t.CallbackText != "" {
		return fmt.Sprintf("%s %q %q", t.Pattern, t.FormatText, t.CallbackText)
	}
	return fmt.Sprintf("%s %q", t.Pattern, t.FormatText)
}
