// Package decode matches raw instruction bytes against the catalog, binds
// operand fields and renders bound instructions as assembly text.
package decode

import (
	"fmt"
	"maps"
)

// Relocation is a (file-offset, symbol-index) pair from the container's
// relocation table. Offset is compared against absolute instruction
// addresses.
type Relocation struct {
	Offset int64
	Symbol uint32
}

// Section is the per-region decoding context. It is created once per
// region, filled by the definition pass and only read by the rendering pass.
// A Section must not be shared between concurrent scans.
type Section struct {
	Name  string
	Index uint16
	Bytes []byte
	Base  int64

	Relocations []Relocation
	// Symbols resolves relocation symbol indices. Index 0 is the null
	// symbol. Shared read-only between sections.
	Symbols []string

	// ObjectLabels maps absolute addresses to symbols defined in this region.
	ObjectLabels map[int64]string
	// BranchLabels holds labels generated by the definition pass.
	BranchLabels map[int64]string
	// RelocationSymbols maps the absolute address of a branch instruction to
	// the name rendered for its target.
	RelocationSymbols map[int64]string
}

// NewSection creates a section context with empty label tables.
func NewSection(name string, data []byte, base int64) *Section {
	return &Section{
		Name:              name,
		Bytes:             data,
		Base:              base,
		ObjectLabels:      make(map[int64]string),
		BranchLabels:      make(map[int64]string),
		RelocationSymbols: make(map[int64]string),
	}
}

// Clone returns a fresh context over the same inputs with the definition
// pass results discarded.
func (s *Section) Clone() *Section {
	c := NewSection(s.Name, s.Bytes, s.Base)
	c.Index = s.Index
	c.Relocations = s.Relocations
	c.Symbols = s.Symbols
	maps.Copy(c.ObjectLabels, s.ObjectLabels)
	return c
}

// Address converts an in-section offset to an absolute address.
func (s *Section) Address(offset int) int64 {
	return s.Base + int64(offset)
}

// RelocationAt returns the first relocation whose offset equals addr.
func (s *Section) RelocationAt(addr int64) (Relocation, bool) {
	for _, r := range s.Relocations {
		if r.Offset == addr {
			return r, true
		}
	}
	return Relocation{}, false
}

// SymbolName resolves a relocation symbol index. The null symbol and
// out-of-range indices resolve to "".
func (s *Section) SymbolName(index uint32) string {
	if index == 0 || int(index) >= len(s.Symbols) {
		return ""
	}
	return s.Symbols[index]
}

// LabelName formats the generated label for an absolute address.
func LabelName(addr int64) string {
	return fmt.Sprintf("L_%08X", uint32(addr))
}
