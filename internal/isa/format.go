package isa

import (
	"strings"

	"vcdis/internal/expr"
)

const (
	// OffsetLetter is the synthetic operand bound to an instruction's own
	// byte offset inside its section.
	OffsetLetter = 'A'
	// CurrencyAlias is accepted in formulas as an alias for OffsetLetter.
	CurrencyAlias = '$'
	// RelocationMarker introduces a relocation-class placeholder.
	RelocationMarker = '@'

	// selfParam names the bound instruction itself in callback specs.
	selfParam = "boundInsn"
)

// SignedLetters are the relative-offset fields that are sign extended when
// bound.
const SignedLetters = "oi"

// ParamKind classifies a rendering or callback parameter.
type ParamKind int

const (
	// ParamLetter substitutes a single bound operand, through its table if one exists.
	ParamLetter ParamKind = iota
	// ParamFormula substitutes an evaluated formula.
	ParamFormula
	// ParamRelocation substitutes the branch symbol recorded for the instruction.
	ParamRelocation
	// ParamLiteral passes a literal string through unchanged.
	ParamLiteral
	// ParamSelf refers to the bound instruction; it carries no value.
	ParamSelf
)

func (k ParamKind) String() string {
	switch k {
	case ParamLetter:
		return "letter"
	case ParamFormula:
		return "formula"
	case ParamRelocation:
		return "relocation"
	case ParamLiteral:
		return "literal"
	case ParamSelf:
		return "self"
	default:
		return "unknown"
	}
}

// NumSpec is the numeric rendering captured from a printf-like % directive.
// A zero Verb means no directive preceded the placeholder.
type NumSpec struct {
	Verb  byte
	Width int
}

// Hex reports whether the value renders as hexadecimal.
func (s NumSpec) Hex() bool { return s.Verb == 'x' }

// Plain reports whether no numeric formatting applies.
func (s NumSpec) Plain() bool { return s.Verb == 0 || s.Verb == 's' }

// Param is one placeholder of a format template or one callback argument.
type Param struct {
	Kind    ParamKind
	Letter  byte      // ParamLetter
	Formula expr.Node // ParamFormula
	Source  string    // formula text after alias substitution, or literal text
	Spec    NumSpec   // rendering spec, format placeholders only
}

// Format is a parsed rendering template: literal text interleaved with
// positional placeholders. Text always holds len(Params)+1 entries.
type Format struct {
	Text   []string
	Params []Param
}

// Empty reports whether the format renders nothing.
func (f *Format) Empty() bool {
	return f == nil || (len(f.Params) == 0 && len(f.Text) == 1 && f.Text[0] == "")
}

// ParseFormat parses a template rendering string. % directives set the
// numeric spec for the next {…} placeholder, @ emits a relocation
// placeholder and {x} or {formula} emit operand placeholders. Everything
// else is copied literally.
func ParseFormat(s string) (*Format, error) {
	f := &Format{}
	var (
		lit     strings.Builder
		pending NumSpec
	)

	flush := func() {
		f.Text = append(f.Text, lit.String())
		lit.Reset()
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '%':
			spec, next, err := parseDirective(s, i)
			if err != nil {
				return nil, err
			}
			pending = spec
			i = next

		case RelocationMarker:
			flush()
			f.Params = append(f.Params, Param{Kind: ParamRelocation})

		case '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return nil, grammarErrorf(s, nil, "unterminated placeholder at offset %d", i)
			}
			p, err := parseBraced(s[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			p.Spec = pending
			pending = NumSpec{}

			flush()
			f.Params = append(f.Params, p)
			i += end

		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return f, nil
}

// parseDirective reads a % directive starting at s[i]. Flags, precision and
// length modifiers are skipped; width and the conversion verb are kept. It
// returns the index of the verb.
func parseDirective(s string, i int) (NumSpec, int, error) {
	at := func(j int) (byte, error) {
		if j >= len(s) {
			return 0, grammarErrorf(s, nil, "truncated %% directive at offset %d", i)
		}
		return s[j], nil
	}

	j := i + 1
	c, err := at(j)
	if err != nil {
		return NumSpec{}, 0, err
	}
	if c == '+' || c == ' ' || c == '#' || c == '0' {
		j++
	}

	var spec NumSpec
	for j < len(s) && isDigit(s[j]) {
		spec.Width = spec.Width*10 + int(s[j]-'0')
		j++
	}

	if c, err = at(j); err != nil {
		return NumSpec{}, 0, err
	}
	if c == '.' {
		j++
		for j < len(s) && isDigit(s[j]) {
			j++
		}
	}

	if c, err = at(j); err != nil {
		return NumSpec{}, 0, err
	}
	switch c {
	case 'h', 'l', 'L', 'z', 'j', 't':
		j++
	}

	if c, err = at(j); err != nil {
		return NumSpec{}, 0, err
	}
	spec.Verb = 'd'
	switch c {
	case 'x', 'X':
		spec.Verb = 'x'
	case 's':
		spec.Verb = 's'
	}
	return spec, j, nil
}

// parseBraced turns the body of a {…} placeholder into a letter or formula
// parameter.
func parseBraced(body string) (Param, error) {
	body = strings.ReplaceAll(strings.TrimSpace(body), string(CurrencyAlias), string(OffsetLetter))
	switch {
	case body == "":
		return Param{}, grammarErrorf("{}", nil, "empty placeholder")
	case len(body) == 1:
		return Param{Kind: ParamLetter, Letter: body[0], Source: body}, nil
	}

	n, err := expr.Parse(body)
	if err != nil {
		return Param{}, grammarErrorf(body, err, "invalid formula")
	}
	return Param{Kind: ParamFormula, Formula: n, Source: body}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
