package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"testing"

	"vcdis/internal/decode"
	"vcdis/internal/disasm"
	"vcdis/internal/isa"
)

const grammar = `
# test subset
0000 0000 0000 0000                     "NOP"
1001 0000 0000 0000 0000 00oo oooo oooo "BRA @"     "BRCHREL({boundInsn}, {A+o*2})"
1111 1111 oooo oooo                     "VEC"       "VECTARG48({o}, x)"
`

var (
	nop = []byte{0x00, 0x00}
	// bra encodes a branch with o = n; n must fit in 10 bits.
	bra = func(n int) []byte { return []byte{0x00, 0x90, byte(n), byte(n>>8) & 0x03} }
)

func mustCatalog(t *testing.T) *isa.Catalog {
	t.Helper()
	c, err := isa.Load(strings.NewReader(grammar))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c
}

func code(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func body(t *testing.T, r disasm.Region, opts TextOptions) string {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteBody(&buf, r, opts); err != nil {
		t.Fatalf("WriteBody failed: %v", err)
	}
	return buf.String()
}

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		base   int64
		setup  func(s *decode.Section)
		want   string
		labels map[int64]string
	}{
		{
			name: "nops",
			data: make([]byte, 4),
			want: "\tNOP\r\n\tNOP\r\n",
		},
		{
			name:   "generated label",
			data:   bra(2),
			want:   "\tBRA L_00000004\r\n",
			labels: map[int64]string{4: "L_00000004"},
		},
		{
			name:   "label line before target",
			data:   code(bra(2), nop),
			want:   "\tBRA L_00000004\r\nL_00000004:\r\n\tNOP\r\n",
			labels: map[int64]string{4: "L_00000004"},
		},
		{
			name:   "backward branch",
			data:   code(nop, bra(0x3FF)),
			want:   "L_00000000:\r\n\tNOP\r\n\tBRA L_00000000\r\n",
			labels: map[int64]string{0: "L_00000000"},
		},
		{
			name:   "section base",
			data:   code(bra(2), nop),
			base:   0x1000,
			want:   "\tBRA L_00001004\r\nL_00001004:\r\n\tNOP\r\n",
			labels: map[int64]string{0x1004: "L_00001004"},
		},
		{
			name: "relocation wins",
			data: code(bra(2), nop),
			setup: func(s *decode.Section) {
				s.Relocations = []decode.Relocation{{Offset: 0, Symbol: 1}}
				s.Symbols = []string{"", "printf"}
			},
			want:   "\tBRA printf\r\n\tNOP\r\n",
			labels: map[int64]string{},
		},
		{
			name: "unnamed relocation falls back to target",
			data: code(bra(2), nop),
			setup: func(s *decode.Section) {
				s.Relocations = []decode.Relocation{{Offset: 0, Symbol: 1}}
				s.Symbols = []string{"", ""}
			},
			want:   "\tBRA L_00000004\r\nL_00000004:\r\n\tNOP\r\n",
			labels: map[int64]string{4: "L_00000004"},
		},
		{
			name: "object label reused",
			data: code(bra(2), nop),
			setup: func(s *decode.Section) {
				s.ObjectLabels[4] = "loop_start"
			},
			want:   "\tBRA loop_start\r\n\r\nloop_start\r\n\tNOP\r\n",
			labels: map[int64]string{},
		},
		{
			name:   "shared target",
			data:   code(bra(4), bra(2), nop),
			want:   "\tBRA L_00000008\r\n\tBRA L_00000008\r\nL_00000008:\r\n\tNOP\r\n",
			labels: map[int64]string{8: "L_00000008"},
		},
		{
			name: "no-op callback",
			data: code([]byte{0xFF, 0xFF}),
			want: "\tVEC\r\n",
		},
	}

	c := mustCatalog(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := decode.NewSection(".text", tt.data, tt.base)
			if tt.setup != nil {
				tt.setup(s)
			}
			r, err := Disassemble(c, s)
			if err != nil {
				t.Fatalf("Disassemble failed: %v", err)
			}
			if got := body(t, r, TextOptions{}); got != tt.want {
				t.Errorf("listing = %q, want %q", got, tt.want)
			}
			if tt.labels != nil && !maps.Equal(s.BranchLabels, tt.labels) {
				t.Errorf("branch labels = %v, want %v", s.BranchLabels, tt.labels)
			}
		})
	}
}

func TestBareBranchFormula(t *testing.T) {
	c, err := isa.Load(strings.NewReader(
		`1001 0000 0000 0000 0000 00oo oooo oooo "BRA @" "BRCHREL({boundInsn}, A+o*2)"` + "\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s := decode.NewSection(".text", []byte{0x00, 0x90, 0x02, 0x00}, 0)
	r, err := Disassemble(c, s)
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}
	if got, want := body(t, r, TextOptions{}), "\tBRA L_00000004\r\n"; got != want {
		t.Errorf("listing = %q, want %q", got, want)
	}
	if want := map[int64]string{4: "L_00000004"}; !maps.Equal(s.BranchLabels, want) {
		t.Errorf("branch labels = %v, want %v", s.BranchLabels, want)
	}
}

func TestDefinitionPassIsIdempotent(t *testing.T) {
	c := mustCatalog(t)
	orig := decode.NewSection(".text", code(bra(4), nop, bra(0x3FE), nop), 0x200)
	orig.ObjectLabels[0x200] = "entry"

	run := func() (*decode.Section, string) {
		s := orig.Clone()
		r, err := Disassemble(c, s)
		if err != nil {
			t.Fatalf("Disassemble failed: %v", err)
		}
		return s, body(t, r, TextOptions{})
	}

	s1, text1 := run()
	s2, text2 := run()
	if !maps.Equal(s1.BranchLabels, s2.BranchLabels) {
		t.Errorf("branch labels differ: %v vs %v", s1.BranchLabels, s2.BranchLabels)
	}
	if !maps.Equal(s1.RelocationSymbols, s2.RelocationSymbols) {
		t.Errorf("relocation symbols differ: %v vs %v", s1.RelocationSymbols, s2.RelocationSymbols)
	}
	if text1 != text2 {
		t.Errorf("listings differ:\n%q\n%q", text1, text2)
	}
	if len(orig.BranchLabels) != 0 {
		t.Error("Clone shares label tables with the original")
	}
}

func TestVisitorsByPass(t *testing.T) {
	c := mustCatalog(t)
	s := decode.NewSection(".text", bra(2), 0)

	render, err := NewVisitor(Rendering, s)
	if err != nil {
		t.Fatalf("NewVisitor failed: %v", err)
	}
	if err := Visit(c, s, render, nil); err != nil {
		t.Fatalf("Visit failed: %v", err)
	}
	if len(s.BranchLabels) != 0 || len(s.RelocationSymbols) != 0 {
		t.Errorf("rendering visitor changed the section: %v %v", s.BranchLabels, s.RelocationSymbols)
	}

	def, _ := NewVisitor(Definition, s)
	if def.Pass() != Definition || render.Pass() != Rendering {
		t.Errorf("unexpected passes %v %v", def.Pass(), render.Pass())
	}
	if _, err := NewVisitor(Pass(7), s); err == nil {
		t.Error("NewVisitor accepted an unknown pass")
	}
}

func TestRunKeepsOrderAndIsolatesFailures(t *testing.T) {
	c := mustCatalog(t)
	sections := []*decode.Section{
		decode.NewSection(".text", code(bra(2), nop), 0),
		decode.NewSection(".init", code(nop, []byte{0x12, 0x34}), 0x100),
		decode.NewSection(".fini", code(nop), 0x200),
	}

	listing, err := Run(context.Background(), c, sections, Options{Workers: 2})
	var ue *decode.UnmatchedInstructionError
	if !errors.As(err, &ue) {
		t.Fatalf("Run error = %v, want UnmatchedInstructionError", err)
	}
	if ue.Section != ".init" || ue.Address != 0x102 {
		t.Errorf("unexpected failure location: %+v", ue)
	}

	if len(listing) != 3 {
		t.Fatalf("got %d regions, want 3", len(listing))
	}
	for i, name := range []string{".text", ".init", ".fini"} {
		if listing[i].Name != name {
			t.Errorf("region %d = %s, want %s", i, listing[i].Name, name)
		}
	}
	if listing[0].Err != "" || listing[2].Err != "" {
		t.Errorf("healthy regions reported errors: %q %q", listing[0].Err, listing[2].Err)
	}
	if listing[1].Err == "" {
		t.Error("failed region has no error")
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, listing, TextOptions{}); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	want := ".text:\r\n\tBRA L_00000004\r\nL_00000004:\r\n\tNOP\r\n\r\n\r\n\r\n" +
		".init:\r\n; error: " + listing[1].Err + "\r\n\r\n\r\n\r\n" +
		".fini:\r\n\tNOP\r\n\r\n\r\n\r\n"
	if buf.String() != want {
		t.Errorf("text = %q, want %q", buf.String(), want)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, mustCatalog(t), []*decode.Section{decode.NewSection(".text", nop, 0)}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestWriteBinaryColumn(t *testing.T) {
	c := mustCatalog(t)
	r, err := Disassemble(c, decode.NewSection(".text", bra(2), 0))
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}
	want := "\tBRA L_00000004\r\n1001 0000 0000 0000 0000 0000 0000 0010 \r\n"
	if got := body(t, r, TextOptions{Binary: true}); got != want {
		t.Errorf("listing = %q, want %q", got, want)
	}
}

func TestWriteJSON(t *testing.T) {
	c := mustCatalog(t)
	r, err := Disassemble(c, decode.NewSection(".text", code(bra(2), nop), 0))
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, disasm.Listing{r}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var got []struct {
		Name  string `json:"name"`
		Lines []struct {
			Kind    string `json:"kind"`
			Address uint32 `json:"address"`
			Text    string `json:"text"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 1 || len(got[0].Lines) != 3 {
		t.Fatalf("unexpected shape: %s", buf.String())
	}
	label := got[0].Lines[1]
	if label.Kind != "label" || label.Address != 4 || label.Text != "L_00000004" {
		t.Errorf("label line = %+v", label)
	}
}
