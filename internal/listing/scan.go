package listing

import (
	"vcdis/internal/decode"
	"vcdis/internal/isa"
)

// Scan decodes s from offset 0 to its end, advancing by each matched
// template's length, and calls fn for every instruction in order. The first
// error from matching or from fn stops the scan.
func Scan(c *isa.Catalog, s *decode.Section, fn func(*decode.Instruction) error) error {
	for off := 0; off < len(s.Bytes); {
		tmpl, window, err := decode.Match(c, s, off)
		if err != nil {
			return err
		}
		if err := fn(decode.Bind(c, s, tmpl, window, off)); err != nil {
			return err
		}
		off += tmpl.ByteLength
	}
	return nil
}

// Visit scans s and dispatches each instruction's callback to v. onInsn, if
// non-nil, runs after the callback.
func Visit(c *isa.Catalog, s *decode.Section, v Visitor, onInsn func(*decode.Instruction) error) error {
	return Scan(c, s, func(in *decode.Instruction) error {
		if cb := in.Template.Callback; cb != nil {
			args, err := in.CallbackArgs()
			if err != nil {
				return err
			}
			if err := v.Handle(cb.Handler, in, args); err != nil {
				return err
			}
		}
		if onInsn != nil {
			return onInsn(in)
		}
		return nil
	})
}
