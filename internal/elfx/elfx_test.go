package elfx

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"vcdis/internal/elfx/elftest"
)

func sampleELF(t *testing.T) []byte {
	t.Helper()
	return elftest.Build(
		[]elftest.Section{
			{Name: ".text", Type: elf.SHT_PROGBITS, Addr: 0x1000, Data: []byte{0, 0, 0, 0x90, 0, 0}},
			{Name: ".data", Type: elf.SHT_PROGBITS, Addr: 0x2000, Data: []byte("hello\x00")},
			{Name: ".rela.text", Type: elf.SHT_RELA, Data: elftest.Rela(0x1002, 4, 1), Link: 5, Info: 1, EntSize: 12},
			{Name: ".bss", Type: elf.SHT_NOBITS, Addr: 0x3000},
		},
		[]elftest.Symbol{
			{Name: "", Info: elftest.SymInfo(elf.STB_LOCAL, elf.STT_SECTION), Shndx: 1},
			{Name: "main", Value: 0x1000, Info: elftest.SymInfo(elf.STB_GLOBAL, elf.STT_FUNC), Shndx: 1},
			{Name: "greeting", Value: 0x2000, Info: elftest.SymInfo(elf.STB_GLOBAL, elf.STT_OBJECT), Shndx: 2},
			{Name: "printf", Info: elftest.SymInfo(elf.STB_GLOBAL, elf.STT_FUNC), Shndx: 0},
			{Name: "scratch", Value: 16, Info: elftest.SymInfo(elf.STB_GLOBAL, elf.STT_OBJECT), Shndx: uint16(elf.SHN_COMMON)},
		},
	)
}

func TestParseELF(t *testing.T) {
	opts := DefaultOptions()
	opts.DataSections = append(opts.DataSections, ".bss")
	im, err := Parse(sampleELF(t), opts)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer im.Close()

	if im.SymbolTable != ".symtab" {
		t.Errorf("SymbolTable = %q, want .symtab", im.SymbolTable)
	}
	if len(im.Symbols) != 6 || im.Symbols[0].Name != "" || im.Symbols[4].Name != "printf" {
		t.Fatalf("unexpected symbols: %+v", im.Symbols)
	}
	if im.Symbols[5].Value != 0 {
		t.Errorf("common symbol value = %d, want 0", im.Symbols[5].Value)
	}

	if len(im.Regions) != 2 {
		t.Fatalf("got %d regions, want 2: %+v", len(im.Regions), im.Regions)
	}
	text, data := im.Regions[0], im.Regions[1]
	if text.Name != ".text" || text.Kind != Code || text.Addr != 0x1000 || text.Index != 1 {
		t.Errorf("unexpected text region: %+v", text)
	}
	if data.Name != ".data" || data.Kind != Data || !bytes.Equal(data.Data, []byte("hello\x00")) {
		t.Errorf("unexpected data region: %+v", data)
	}

	if len(text.Objects) != 1 || text.Objects[0x1000] != "main" {
		t.Errorf("text objects = %v", text.Objects)
	}
	if len(data.Objects) != 1 || data.Objects[0x2000] != "greeting" {
		t.Errorf("data objects = %v", data.Objects)
	}

	want := Relocation{Offset: 0x1002, Symbol: 4, Type: 1}
	if len(text.Relocs) != 1 || text.Relocs[0] != want {
		t.Errorf("relocations = %+v, want [%+v]", text.Relocs, want)
	}
	if len(data.Relocs) != 0 {
		t.Errorf("data relocations = %+v", data.Relocs)
	}
}

func TestCodeSections(t *testing.T) {
	im, err := Parse(sampleELF(t), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	secs := im.CodeSections()
	if len(secs) != 1 {
		t.Fatalf("got %d code sections, want 1", len(secs))
	}
	s := secs[0]
	if s.Base != 0x1000 || s.ObjectLabels[0x1000] != "main" {
		t.Errorf("unexpected section: base 0x%X labels %v", s.Base, s.ObjectLabels)
	}
	r, ok := s.RelocationAt(0x1002)
	if !ok || s.SymbolName(r.Symbol) != "printf" {
		t.Errorf("relocation at 0x1002 = %+v, %v", r, ok)
	}
	if len(s.BranchLabels) != 0 || len(s.RelocationSymbols) != 0 {
		t.Error("new section has definition pass results")
	}
}

func TestParseWithoutSymbols(t *testing.T) {
	data := elftest.Build([]elftest.Section{
		{Name: ".text", Type: elf.SHT_PROGBITS, Data: []byte{0, 0}},
	}, nil)

	im, err := Parse(data, DefaultOptions())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if im.SymbolTable != "" || len(im.Symbols) != 1 {
		t.Errorf("unexpected symbols: %q %+v", im.SymbolTable, im.Symbols)
	}
	if len(im.CodeRegions()) != 1 || len(im.CodeRegions()[0].Objects) != 0 {
		t.Errorf("unexpected regions: %+v", im.Regions)
	}
}

func TestParseRaw(t *testing.T) {
	data := append(make([]byte, DefaultRawHeader), 0x5A, 0x00, 0x01, 0x00)

	im, err := Parse(data, Options{Raw: true, RawHeader: DefaultRawHeader})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !im.Raw || len(im.Regions) != 1 {
		t.Fatalf("unexpected image: %+v", im)
	}
	r := im.Regions[0]
	if r.Kind != Code || r.Addr != 0 || !bytes.Equal(r.Data, []byte{0x5A, 0x00, 0x01, 0x00}) {
		t.Errorf("unexpected region: %+v", r)
	}

	if _, err := Parse(data[:100], Options{Raw: true, RawHeader: DefaultRawHeader}); err == nil {
		t.Error("short raw image parsed without error")
	}
	if _, err := Parse(data, Options{Raw: true, RawHeader: -1}); err == nil {
		t.Error("negative header parsed without error")
	}
}

func TestOpenRawByName(t *testing.T) {
	tests := []struct {
		name string
		raw  bool
	}{
		{"bootcode.bin", true},
		{"bootcode_new.bin", true},
		{"loader.bin", true},
		{"start.elf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRawImage(filepath.Join("firmware", tt.name)); got != tt.raw {
				t.Errorf("IsRawImage = %v, want %v", got, tt.raw)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "bootcode.bin")
	if err := os.WriteFile(path, append(make([]byte, DefaultRawHeader), 0, 0), 0o644); err != nil {
		t.Fatal(err)
	}
	im, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer im.Close()
	if !im.Raw || im.Path != path || len(im.Regions[0].Data) != 2 {
		t.Errorf("unexpected image: raw=%v path=%q", im.Raw, im.Path)
	}
}

func TestOpenELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "start.elf")
	if err := os.WriteFile(path, sampleELF(t), 0o644); err != nil {
		t.Fatal(err)
	}
	im, err := Open(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if im.Raw || len(im.CodeRegions()) != 1 {
		t.Errorf("unexpected image: %+v", im.Regions)
	}
	if err := im.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not an elf"), DefaultOptions()); err == nil {
		t.Error("Parse accepted garbage")
	}
}
