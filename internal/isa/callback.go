package isa

import (
	"strings"

	"vcdis/internal/expr"
)

// Handler identifies a callback named by the grammar. Names are resolved
// once at load time; visitors switch on the identifier.
type Handler int

const (
	HandlerNone Handler = iota
	// HandlerBranchRel resolves a relative branch target to a symbol or label.
	HandlerBranchRel
	// HandlerVectorArg48 describes a 48-bit vector operand.
	HandlerVectorArg48
	// HandlerVectorArg80 describes an 80-bit vector operand.
	HandlerVectorArg80
	// HandlerRepeat describes a vector repeat count.
	HandlerRepeat
)

var handlerNames = map[string]Handler{
	"BRCHREL":   HandlerBranchRel,
	"VECTARG48": HandlerVectorArg48,
	"VECTARG80": HandlerVectorArg80,
	"REPNUM":    HandlerRepeat,
}

func (h Handler) String() string {
	for name, id := range handlerNames {
		if id == h {
			return name
		}
	}
	return "NONE"
}

// LookupHandler resolves a grammar callback name.
func LookupHandler(name string) (Handler, bool) {
	h, ok := handlerNames[name]
	return h, ok
}

// Callback is a parsed callback spec: a handler and its ordered parameters.
type Callback struct {
	Handler Handler
	Params  []Param
}

// ParseCallback parses "NAME(param, param, ...)". {x} binds an operand
// letter and {formula} a formula. A bare parameter is a formula when it
// carries an arithmetic operator and parses as one, otherwise a literal.
// Unknown handler names are rejected.
func ParseCallback(s string) (*Callback, error) {
	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open < 0 || closing < open {
		return nil, grammarErrorf(s, nil, "callback must have the form NAME(params)")
	}

	name := strings.TrimSpace(s[:open])
	h, ok := LookupHandler(name)
	if !ok {
		return nil, grammarErrorf(s, nil, "unknown callback handler %q", name)
	}

	cb := &Callback{Handler: h}
	body := strings.TrimSpace(s[open+1 : closing])
	if body == "" {
		return cb, nil
	}

	for _, raw := range strings.Split(body, ",") {
		p, err := parseCallbackParam(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		if p.Kind == ParamSelf {
			continue
		}
		cb.Params = append(cb.Params, p)
	}
	return cb, nil
}

func parseCallbackParam(s string) (Param, error) {
	if s == selfParam {
		return Param{Kind: ParamSelf}, nil
	}

	open := strings.IndexByte(s, '{')
	if open < 0 {
		return parseBareParam(s), nil
	}
	end := strings.IndexByte(s[open:], '}')
	if end < 0 {
		return Param{}, grammarErrorf(s, nil, "unterminated callback parameter")
	}

	body := strings.TrimSpace(s[open+1 : open+end])
	if body == selfParam {
		return Param{Kind: ParamSelf}, nil
	}
	return parseBraced(body)
}

func parseBareParam(s string) Param {
	body := strings.ReplaceAll(s, string(CurrencyAlias), string(OffsetLetter))
	if strings.ContainsAny(body, "+-*/%") {
		if n, err := expr.Parse(body); err == nil {
			return Param{Kind: ParamFormula, Formula: n, Source: body}
		}
	}
	return Param{Kind: ParamLiteral, Source: s}
}
