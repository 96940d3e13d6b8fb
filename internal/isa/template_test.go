package isa

import (
	"bytes"
	"testing"
)

func TestNewTemplateMasks(t *testing.T) {
	tmpl, err := NewTemplate("1010 xxxx 0000 1111", "x", "")
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}

	if tmpl.ByteLength != 2 {
		t.Errorf("ByteLength = %d, want 2", tmpl.ByteLength)
	}
	if !bytes.Equal(tmpl.MatchBytes(), []byte{0xA0, 0x0F}) {
		t.Errorf("MatchBytes = % X", tmpl.MatchBytes())
	}
	if !bytes.Equal(tmpl.MaskBytes(), []byte{0xF0, 0xFF}) {
		t.Errorf("MaskBytes = % X", tmpl.MaskBytes())
	}

	tests := []struct {
		window []byte
		want   bool
	}{
		{[]byte{0xA0, 0x0F}, true},
		{[]byte{0xAF, 0x0F}, true},
		{[]byte{0xB0, 0x0F}, false},
		{[]byte{0xA0, 0x1F}, false},
		{[]byte{0xA0}, false},
		{[]byte{0xA0, 0x0F, 0x00, 0x00}, false},
	}
	for _, tt := range tests {
		if got := tmpl.Matches(tt.window); got != tt.want {
			t.Errorf("Matches(% X) = %v, want %v", tt.window, got, tt.want)
		}
	}
}

func TestTemplateLetters(t *testing.T) {
	tmpl := MustTemplate("0100 ssdd ssdd oooo", "x", "")
	if got := string(tmpl.Letters()); got != "sdo" {
		t.Errorf("Letters = %q, want %q", got, "sdo")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		text   []string
		params []Param
	}{
		{
			name:   "plain",
			format: "nop",
			text:   []string{"nop"},
		},
		{
			name:   "registers",
			format: "mov r%d{d}, r%d{s}",
			text:   []string{"mov r", ", r", ""},
			params: []Param{
				{Kind: ParamLetter, Letter: 'd', Source: "d", Spec: NumSpec{Verb: 'd'}},
				{Kind: ParamLetter, Letter: 's', Source: "s", Spec: NumSpec{Verb: 'd'}},
			},
		},
		{
			name:   "hex with width and flag",
			format: "mov r{d}, 0x%08x{u}",
			text:   []string{"mov r", ", 0x", ""},
			params: []Param{
				{Kind: ParamLetter, Letter: 'd', Source: "d"},
				{Kind: ParamLetter, Letter: 'u', Source: "u", Spec: NumSpec{Verb: 'x', Width: 8}},
			},
		},
		{
			name:   "relocation leaves pending spec",
			format: "b%x{c} @ {o}",
			text:   []string{"b", " ", " ", ""},
			params: []Param{
				{Kind: ParamLetter, Letter: 'c', Source: "c", Spec: NumSpec{Verb: 'x'}},
				{Kind: ParamRelocation},
				{Kind: ParamLetter, Letter: 'o', Source: "o"},
			},
		},
		{
			name:   "precision and length skipped",
			format: "%4.2ld{a}%ls{b}",
			text:   []string{"", "", ""},
			params: []Param{
				{Kind: ParamLetter, Letter: 'a', Source: "a", Spec: NumSpec{Verb: 'd', Width: 4}},
				{Kind: ParamLetter, Letter: 'b', Source: "b", Spec: NumSpec{Verb: 's'}},
			},
		},
		{
			name:   "formula with currency alias",
			format: "addr {$+o*2}",
			text:   []string{"addr ", ""},
			params: []Param{
				{Kind: ParamFormula, Source: "A+o*2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFormat(tt.format)
			if err != nil {
				t.Fatalf("ParseFormat(%q) failed: %v", tt.format, err)
			}
			if len(f.Text) != len(tt.text) {
				t.Fatalf("Text = %q, want %q", f.Text, tt.text)
			}
			for i := range tt.text {
				if f.Text[i] != tt.text[i] {
					t.Errorf("Text[%d] = %q, want %q", i, f.Text[i], tt.text[i])
				}
			}
			if len(f.Params) != len(tt.params) {
				t.Fatalf("got %d params, want %d", len(f.Params), len(tt.params))
			}
			for i, want := range tt.params {
				got := f.Params[i]
				if got.Kind != want.Kind || got.Letter != want.Letter || got.Source != want.Source || got.Spec != want.Spec {
					t.Errorf("param %d = %+v, want %+v", i, got, want)
				}
				if want.Kind == ParamFormula && got.Formula == nil {
					t.Errorf("param %d has no parsed formula", i)
				}
			}
		})
	}
}

func TestParseFormatErrors(t *testing.T) {
	for _, format := range []string{"mov {d", "50%", "%0", "%4.", "{}", "{a+}"} {
		t.Run(format, func(t *testing.T) {
			if _, err := ParseFormat(format); err == nil {
				t.Errorf("ParseFormat(%q) succeeded, want error", format)
			}
		})
	}
}

func TestFormatEmpty(t *testing.T) {
	empty, _ := ParseFormat("")
	if !empty.Empty() {
		t.Error("empty format should report Empty")
	}
	reloc, _ := ParseFormat("@")
	if reloc.Empty() {
		t.Error("format with a placeholder should not report Empty")
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		handler Handler
		kinds   []ParamKind
	}{
		{name: "formula", spec: "BRCHREL({$+o*2})", handler: HandlerBranchRel, kinds: []ParamKind{ParamFormula}},
		{name: "self is dropped", spec: "BRCHREL({boundInsn}, {A+o*2})", handler: HandlerBranchRel, kinds: []ParamKind{ParamFormula}},
		{name: "bare formula", spec: "BRCHREL({boundInsn}, A+o*2)", handler: HandlerBranchRel, kinds: []ParamKind{ParamFormula}},
		{name: "bare currency formula", spec: "BRCHREL($+o*2)", handler: HandlerBranchRel, kinds: []ParamKind{ParamFormula}},
		{name: "bare text stays literal", spec: "VECTARG48(a-, x)", handler: HandlerVectorArg48, kinds: []ParamKind{ParamLiteral, ParamLiteral}},
		{name: "letter and literal", spec: "VECTARG48({a}, rest)", handler: HandlerVectorArg48, kinds: []ParamKind{ParamLetter, ParamLiteral}},
		{name: "no params", spec: "REPNUM()", handler: HandlerRepeat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseCallback(tt.spec)
			if err != nil {
				t.Fatalf("ParseCallback(%q) failed: %v", tt.spec, err)
			}
			if cb.Handler != tt.handler {
				t.Errorf("handler = %v, want %v", cb.Handler, tt.handler)
			}
			if len(cb.Params) != len(tt.kinds) {
				t.Fatalf("got %d params, want %d", len(cb.Params), len(tt.kinds))
			}
			for i, k := range tt.kinds {
				if cb.Params[i].Kind != k {
					t.Errorf("param %d kind = %v, want %v", i, cb.Params[i].Kind, k)
				}
			}
		})
	}
}

func TestParseCallbackErrors(t *testing.T) {
	for _, spec := range []string{"BRCHREL", "BRCHREL)(", "NOPE({o})", "BRCHREL({o)"} {
		t.Run(spec, func(t *testing.T) {
			if _, err := ParseCallback(spec); err == nil {
				t.Errorf("ParseCallback(%q) succeeded, want error", spec)
			}
		})
	}
}

func TestHandlerString(t *testing.T) {
	if HandlerBranchRel.String() != "BRCHREL" {
		t.Errorf("HandlerBranchRel.String() = %q", HandlerBranchRel.String())
	}
	if HandlerNone.String() != "NONE" {
		t.Errorf("HandlerNone.String() = %q", HandlerNone.String())
	}
}
