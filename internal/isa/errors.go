package isa

import "fmt"

// GrammarError reports a grammar line that could not be turned into a
// template or table declaration. It is fatal: no decoding may start with a
// partially loaded catalog.
type GrammarError struct {
	Line   int    // 1-based line number, 0 when parsing a lone template
	Text   string // offending line or fragment
	Reason string
	Err    error // underlying cause, if any
}

func (e *GrammarError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("grammar line %d: %s (%q)", e.Line, msg, e.Text)
	}
	return fmt.Sprintf("grammar: %s (%q)", msg, e.Text)
}

func (e *GrammarError) Unwrap() error { return e.Err }

func grammarErrorf(text string, err error, format string, args ...any) *GrammarError {
	return &GrammarError{Text: text, Reason: fmt.Sprintf(format, args...), Err: err}
}
