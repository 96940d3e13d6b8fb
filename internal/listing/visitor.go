// Package listing drives the two-pass disassembly of code regions: a
// definition pass that assigns branch labels and a rendering pass that
// produces the listing.
package listing

import (
	"fmt"

	"vcdis/internal/decode"
	"vcdis/internal/isa"
)

// Pass selects the visitor a scan dispatches callbacks to.
type Pass int

const (
	Definition Pass = iota
	Rendering
)

func (p Pass) String() string {
	switch p {
	case Definition:
		return "definition"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("Pass(%d)", int(p))
	}
}

// Visitor receives the callback of every decoded instruction that declares
// one. Handle must accept every handler the catalog can produce.
type Visitor interface {
	Pass() Pass
	Handle(h isa.Handler, in *decode.Instruction, args []decode.Value) error
}

// NewVisitor returns the visitor for pass p operating on s.
func NewVisitor(p Pass, s *decode.Section) (Visitor, error) {
	switch p {
	case Definition:
		return &definitionVisitor{section: s}, nil
	case Rendering:
		return renderingVisitor{}, nil
	default:
		return nil, fmt.Errorf("unknown pass %d", int(p))
	}
}

// definitionVisitor resolves branch targets into the section's label tables.
type definitionVisitor struct {
	section *decode.Section
}

func (v *definitionVisitor) Pass() Pass { return Definition }

func (v *definitionVisitor) Handle(h isa.Handler, in *decode.Instruction, args []decode.Value) error {
	switch h {
	case isa.HandlerBranchRel:
		return v.branch(in, args)
	case isa.HandlerVectorArg48, isa.HandlerVectorArg80, isa.HandlerRepeat, isa.HandlerNone:
		return nil
	}
	return fmt.Errorf("%s visitor: unhandled callback %s", v.Pass(), h)
}

// branch binds the instruction at in.Address to a symbol. A named relocation
// at the instruction wins; otherwise the target address reuses an object or
// branch label, or gets a new generated label.
func (v *definitionVisitor) branch(in *decode.Instruction, args []decode.Value) error {
	s := v.section
	if r, ok := s.RelocationAt(in.Address); ok {
		if name := s.SymbolName(r.Symbol); name != "" {
			s.RelocationSymbols[in.Address] = name
			return nil
		}
	}

	if len(args) != 1 || args[0].IsText {
		return fmt.Errorf("%s at 0x%08X: BRCHREL wants one numeric target, got %v",
			in.Template.Pattern, uint32(in.Address), args)
	}
	target := args[0].Int + s.Base

	if name, ok := s.ObjectLabels[target]; ok {
		s.RelocationSymbols[in.Address] = name
		return nil
	}
	if name, ok := s.BranchLabels[target]; ok {
		s.RelocationSymbols[in.Address] = name
		return nil
	}

	name := decode.LabelName(target)
	s.BranchLabels[target] = name
	s.RelocationSymbols[in.Address] = name
	return nil
}

// renderingVisitor has no side effects; branch symbols are consumed by the
// relocation placeholder while formatting.
type renderingVisitor struct{}

func (renderingVisitor) Pass() Pass { return Rendering }

func (renderingVisitor) Handle(h isa.Handler, _ *decode.Instruction, _ []decode.Value) error {
	switch h {
	case isa.HandlerNone, isa.HandlerBranchRel, isa.HandlerVectorArg48, isa.HandlerVectorArg80, isa.HandlerRepeat:
		return nil
	}
	return fmt.Errorf("rendering visitor: unhandled callback %s", h)
}
