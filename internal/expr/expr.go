// Package expr parses the small integer formulas used by instruction
// templates (for example "A+o*2") into a tree that can be evaluated many
// times against different operand bindings.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDivideByZero is returned by Eval when a divisor evaluates to zero.
var ErrDivideByZero = errors.New("division by zero")

// Env resolves variable names to integer values during evaluation.
type Env interface {
	Lookup(name string) (int64, bool)
}

// MapEnv is an Env backed by a plain map.
type MapEnv map[string]int64

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (int64, bool) {
	v, ok := m[name]
	return v, ok
}

// UnknownVariableError reports a variable that the Env could not resolve.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// SyntaxError reports a formula that could not be parsed.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d in expression %q", e.Msg, e.Pos, e.Input)
}

// Node is a parsed expression.
type Node interface {
	Eval(env Env) (int64, error)
	String() string
}

type number int64

func (n number) Eval(Env) (int64, error) { return int64(n), nil }
func (n number) String() string         { return strconv.FormatInt(int64(n), 10) }

type variable string

func (v variable) Eval(env Env) (int64, error) {
	if env != nil {
		if val, ok := env.Lookup(string(v)); ok {
			return val, nil
		}
	}
	return 0, &UnknownVariableError{Name: string(v)}
}

func (v variable) String() string { return string(v) }

type negate struct {
	operand Node
}

func (n negate) Eval(env Env) (int64, error) {
	v, err := n.operand.Eval(env)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

func (n negate) String() string { return "(-" + n.operand.String() + ")" }

type binary struct {
	op          byte
	left, right Node
}

func (b binary) Eval(env Env) (int64, error) {
	left, err := b.left.Eval(env)
	if err != nil {
		return 0, err
	}
	right, err := b.right.Eval(env)
	if err != nil {
		return 0, err
	}

	switch b.op {
	case '+':
		return left + right, nil
	case '-':
		return left - right, nil
	case '*':
		return left * right, nil
	case '/':
		if right == 0 {
			return 0, ErrDivideByZero
		}
		return left / right, nil
	case '%':
		if right == 0 {
			return 0, ErrDivideByZero
		}
		return left % right, nil
	default:
		return 0, fmt.Errorf("unsupported operator '%c'", b.op)
	}
}

func (b binary) String() string {
	return "(" + b.left.String() + " " + string(b.op) + " " + b.right.String() + ")"
}

// Parse parses a formula built from integer literals (decimal or 0x hex),
// identifiers, parentheses, unary minus and the binary operators + - * / %.
func Parse(s string) (Node, error) {
	p := &parser{input: s}
	if strings.TrimSpace(s) == "" {
		return nil, p.errorf("empty expression")
	}

	n, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return nil, p.errorf("unexpected character '%c'", p.input[p.pos])
	}
	return n, nil
}

// MustParse is like Parse but panics on error. Intended for constant formulas.
func MustParse(s string) Node {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	input string
	pos   int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpaces()
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

// parseAdd handles + and -
func (p *parser) parseAdd() (Node, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		ch := p.peek()
		if ch != '+' && ch != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = binary{op: ch, left: left, right: right}
	}
}

// parseMul handles * / and %
func (p *parser) parseMul() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		ch := p.peek()
		if ch != '*' && ch != '/' && ch != '%' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary{op: ch, left: left, right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	switch p.peek() {
	case '-':
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate{operand: operand}, nil
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Node, error) {
	ch := p.peek()
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of expression")
	}

	switch {
	case ch == '(':
		p.pos++
		n, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return n, nil

	case isDigit(ch):
		return p.parseNumber()

	case isIdentStart(ch):
		start := p.pos
		for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
			p.pos++
		}
		return variable(p.input[start:p.pos]), nil
	}

	return nil, p.errorf("unexpected character '%c'", ch)
}

func (p *parser) parseNumber() (Node, error) {
	start := p.pos
	base := 10
	if strings.HasPrefix(p.input[p.pos:], "0x") || strings.HasPrefix(p.input[p.pos:], "0X") {
		base = 16
		p.pos += 2
		start = p.pos
	}
	for p.pos < len(p.input) && isHexDigit(p.input[p.pos]) {
		if base == 10 && !isDigit(p.input[p.pos]) {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("expected digits")
	}

	v, err := strconv.ParseInt(p.input[start:p.pos], base, 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", p.input[start:p.pos])
	}
	return number(v), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
