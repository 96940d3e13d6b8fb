package decode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vcdis/internal/expr"
	"vcdis/internal/isa"
)

// branchTarget is the default relocation rendering when no symbol was
// recorded for an instruction.
var branchTarget = expr.MustParse("A+o*2")

// UnresolvedOperandError is returned when a placeholder names a letter the
// template never binds.
type UnresolvedOperandError struct {
	Letter  byte
	Pattern string
	Address int64
}

func (e *UnresolvedOperandError) Error() string {
	return fmt.Sprintf("operand %q is not bound by pattern %s (address 0x%08X)", e.Letter, e.Pattern, uint32(e.Address))
}

// TableRangeError is returned when an operand value indexes past the end of
// its table.
type TableRangeError struct {
	Tag     byte
	Index   int64
	Size    int
	Address int64
}

func (e *TableRangeError) Error() string {
	return fmt.Sprintf("value %d out of range for table %q with %d entries (address 0x%08X)",
		e.Index, e.Tag, e.Size, uint32(e.Address))
}

// Value is a rendered callback argument.
type Value struct {
	Int    int64
	Text   string
	IsText bool
}

func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatInt(v.Int, 10)
}

// Text renders the instruction through its template format. Relocation
// placeholders read the section's relocation symbols, so the definition
// pass must have run first.
func (in *Instruction) Text() (string, error) {
	f := in.Template.Format
	if f.Empty() {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(f.Text[0])
	for i, p := range f.Params {
		s, err := in.renderParam(p)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		b.WriteString(f.Text[i+1])
	}
	return b.String(), nil
}

func (in *Instruction) renderParam(p isa.Param) (string, error) {
	switch p.Kind {
	case isa.ParamRelocation:
		if name, ok := in.section.RelocationSymbols[in.Address]; ok {
			return name, nil
		}
		v, err := branchTarget.Eval(in)
		if err != nil {
			return "", in.operandError(err)
		}
		return fmt.Sprintf("0x%08X", uint32(v)), nil

	case isa.ParamFormula:
		v, err := p.Formula.Eval(in)
		if err != nil {
			return "", in.operandError(err)
		}
		return formatNumber(v, p.Spec), nil

	case isa.ParamLetter:
		v, err := in.operand(p.Letter)
		if err != nil {
			return "", err
		}
		if v.IsText {
			return v.Text, nil
		}
		return formatNumber(v.Int, p.Spec), nil

	case isa.ParamLiteral:
		return p.Source, nil
	}
	return "", fmt.Errorf("unexpected %s placeholder in format of %s", p.Kind, in.Template.Pattern)
}

// operand resolves a letter, through its table when one is defined.
func (in *Instruction) operand(letter byte) (Value, error) {
	v, ok := in.Value(letter)
	if !ok {
		return Value{}, &UnresolvedOperandError{Letter: letter, Pattern: in.Template.Pattern, Address: in.Address}
	}

	table, ok := in.catalog.Table(letter)
	if !ok {
		return Value{Int: v}, nil
	}
	if v < 0 || v >= int64(len(table)) {
		return Value{}, &TableRangeError{Tag: letter, Index: v, Size: len(table), Address: in.Address}
	}
	return Value{Text: table[v], IsText: true}, nil
}

// CallbackArgs evaluates the template callback parameters. It returns nil
// when the template has no callback.
func (in *Instruction) CallbackArgs() ([]Value, error) {
	cb := in.Template.Callback
	if cb == nil {
		return nil, nil
	}

	args := make([]Value, 0, len(cb.Params))
	for _, p := range cb.Params {
		switch p.Kind {
		case isa.ParamFormula:
			v, err := p.Formula.Eval(in)
			if err != nil {
				return nil, in.operandError(err)
			}
			args = append(args, Value{Int: v})
		case isa.ParamLetter:
			v, err := in.operand(p.Letter)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		case isa.ParamLiteral:
			args = append(args, Value{Text: p.Source, IsText: true})
		default:
			return nil, fmt.Errorf("unexpected %s parameter in callback of %s", p.Kind, in.Template.Pattern)
		}
	}
	return args, nil
}

func (in *Instruction) operandError(err error) error {
	var uv *expr.UnknownVariableError
	if errors.As(err, &uv) && len(uv.Name) == 1 {
		return &UnresolvedOperandError{Letter: uv.Name[0], Pattern: in.Template.Pattern, Address: in.Address}
	}
	return fmt.Errorf("evaluate operand of %s at 0x%08X: %w", in.Template.Pattern, uint32(in.Address), err)
}

// formatNumber renders v per the captured numeric spec. Hex renders the two's
// complement low 32 bits of negative values; decimal pads the magnitude
// after the sign.
func formatNumber(v int64, spec isa.NumSpec) string {
	if spec.Hex() {
		if v < 0 {
			return fmt.Sprintf("%0*X", spec.Width, uint32(v))
		}
		return fmt.Sprintf("%0*X", spec.Width, uint64(v))
	}
	if spec.Plain() || spec.Width == 0 {
		return strconv.FormatInt(v, 10)
	}
	if v < 0 {
		return "-" + fmt.Sprintf("%0*d", spec.Width, uint64(-v))
	}
	return fmt.Sprintf("%0*d", spec.Width, v)
}
