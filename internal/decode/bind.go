package decode

import (
	"strings"

	"vcdis/internal/isa"
)

// Instruction is a template matched at a scan position together with the
// operand values extracted from its window.
type Instruction struct {
	Template *isa.Template
	Window   []byte
	Offset   int   // position inside the section
	Address  int64 // Offset plus the section base

	catalog *isa.Catalog
	section *Section
	values  map[byte]int64
}

// Bind extracts every operand field of t from window. Bit i of the pattern
// addresses bit (7 - i%8) of window[i/8]. Fields accumulate most significant
// bit first; the relative offset fields are sign extended from their first
// bit. The synthetic offset operand is bound last.
func Bind(c *isa.Catalog, s *Section, t *isa.Template, window []byte, offset int) *Instruction {
	values := make(map[byte]int64)
	for i := 0; i < len(t.Pattern); i++ {
		letter := t.Pattern[i]
		if letter == '0' || letter == '1' {
			continue
		}

		bit := int64(window[i/8]>>(7-i%8)) & 1
		v, seen := values[letter]
		if !seen && bit == 1 && strings.IndexByte(isa.SignedLetters, letter) >= 0 {
			v = -1
		}
		values[letter] = v<<1 | bit
	}
	values[isa.OffsetLetter] = int64(offset)

	return &Instruction{
		Template: t,
		Window:   window,
		Offset:   offset,
		Address:  s.Address(offset),
		catalog:  c,
		section:  s,
		values:   values,
	}
}

// Value returns a bound operand.
func (in *Instruction) Value(letter byte) (int64, bool) {
	v, ok := in.values[letter]
	return v, ok
}

// Section returns the context the instruction was decoded in.
func (in *Instruction) Section() *Section { return in.section }

// Len is the encoded length in bytes.
func (in *Instruction) Len() int { return in.Template.ByteLength }

// Lookup implements expr.Env. Letters that name a table are not visible to
// formulas.
func (in *Instruction) Lookup(name string) (int64, bool) {
	if len(name) != 1 || in.catalog.IsTable(name[0]) {
		return 0, false
	}
	return in.Value(name[0])
}
