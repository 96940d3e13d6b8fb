// Package elfx opens VideoCore IV ELF images and raw boot images and splits
// them into the code and data regions the disassembler works on.
package elfx

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"vcdis/internal/decode"
)

// DefaultRawHeader is the size of the header preceding the code in raw boot
// images.
const DefaultRawHeader = 512

// rawImageNames are file names that are always loaded as raw boot images.
var rawImageNames = []string{"bootcode.bin", "bootcode_new.bin", "loader.bin"}

// Kind classifies a region.
type Kind int

const (
	Code Kind = iota
	Data
)

func (k Kind) String() string {
	if k == Code {
		return "code"
	}
	return "data"
}

type Image struct {
	Path string
	Raw  bool
	// File is nil for raw images.
	File *elf.File
	All  []byte

	// SymbolTable names the table Symbols came from, empty if none.
	SymbolTable string
	// Symbols is indexed by ELF symbol index; entry 0 is the null symbol.
	Symbols []Symbol
	Regions []Region

	f *os.File
}

type Symbol struct {
	Name    string
	Value   uint32
	Size    uint32
	Section elf.SectionIndex
	Type    elf.SymType
	Bind    elf.SymBind
}

// Relocation is one Elf32_Rela entry.
type Relocation struct {
	Offset uint32
	Symbol uint32
	Type   uint32
	Addend int32
}

// Region is a loaded section.
type Region struct {
	Name   string
	Index  elf.SectionIndex
	Kind   Kind
	Addr   uint32
	Off    uint32
	Data   []byte
	Relocs []Relocation
	// Objects maps addresses to the symbols defined in this region.
	Objects map[uint32]string
}

// Options selects which sections become regions.
type Options struct {
	TextSections []string
	DataSections []string
	// Raw forces raw boot image loading regardless of the file name.
	Raw       bool
	RawHeader int
}

// DefaultOptions returns the section selection used for VideoCore firmware.
func DefaultOptions() Options {
	return Options{
		TextSections: []string{".text"},
		DataSections: []string{".data", ".rodata", ".got"},
		RawHeader:    DefaultRawHeader,
	}
}

// IsRawImage reports whether path names a known raw boot image.
func IsRawImage(path string) bool {
	return slices.Contains(rawImageNames, filepath.Base(path))
}

// Open maps the file at path and loads it. Raw boot images are recognised
// by name or by opts.Raw.
func Open(path string, opts Options) (*Image, error) {
	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	var all []byte
	if fi.Size() > 0 {
		all, err = syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
		if err != nil {
			of.Close()
			return nil, fmt.Errorf("mmap file: %w", err)
		}
	}

	opts.Raw = opts.Raw || IsRawImage(path)
	im, err := Parse(all, opts)
	if err != nil {
		if all != nil {
			syscall.Munmap(all)
		}
		of.Close()
		return nil, err
	}
	im.Path = path
	im.f = of
	return im, nil
}

// Parse loads an image held in memory. The region of a raw image aliases data.
func Parse(data []byte, opts Options) (*Image, error) {
	if opts.Raw {
		return parseRaw(data, opts.RawHeader)
	}

	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("open elf: unsupported class %v", f.Class)
	}

	im := &Image{File: f, All: data}
	if err := im.loadSymbols(); err != nil {
		return nil, err
	}
	if err := im.loadRegions(opts.TextSections, Code); err != nil {
		return nil, err
	}
	if err := im.loadRegions(opts.DataSections, Data); err != nil {
		return nil, err
	}
	return im, nil
}

func parseRaw(data []byte, header int) (*Image, error) {
	if header < 0 {
		return nil, fmt.Errorf("raw image: negative header size %d", header)
	}
	if len(data) < header {
		return nil, fmt.Errorf("raw image: %d bytes is shorter than the %d byte header", len(data), header)
	}
	return &Image{
		Raw:     true,
		All:     data,
		Symbols: []Symbol{{}},
		Regions: []Region{{
			Name:    ".text",
			Index:   1,
			Kind:    Code,
			Off:     uint32(header),
			Data:    data[header:],
			Objects: map[uint32]string{},
		}},
	}, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.f != nil && im.All != nil {
		err1 = syscall.Munmap(im.All)
	}
	im.All = nil
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		if err3 := im.File.Close(); err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// loadSymbols reads .dynsym, falling back to .symtab. An image without either
// is not an error.
func (im *Image) loadSymbols() error {
	syms, err := im.File.DynamicSymbols()
	im.SymbolTable = ".dynsym"
	if errors.Is(err, elf.ErrNoSymbols) {
		syms, err = im.File.Symbols()
		im.SymbolTable = ".symtab"
	}
	if errors.Is(err, elf.ErrNoSymbols) {
		im.SymbolTable = ""
		im.Symbols = []Symbol{{}}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", im.SymbolTable, err)
	}

	// debug/elf drops the null symbol; keep ELF indices intact.
	im.Symbols = make([]Symbol, 1, len(syms)+1)
	for _, s := range syms {
		sym := Symbol{
			Name:    s.Name,
			Value:   uint32(s.Value),
			Size:    uint32(s.Size),
			Section: s.Section,
			Type:    elf.ST_TYPE(s.Info),
			Bind:    elf.ST_BIND(s.Info),
		}
		// Common symbols carry their alignment in the value field.
		if sym.Section == elf.SHN_COMMON {
			sym.Value = 0
		}
		im.Symbols = append(im.Symbols, sym)
	}
	return nil
}

func (im *Image) loadRegions(names []string, kind Kind) error {
	for _, name := range names {
		if name == ".bss" {
			continue
		}
		idx := slices.IndexFunc(im.File.Sections, func(s *elf.Section) bool { return s.Name == name })
		if idx < 0 {
			continue
		}
		s := im.File.Sections[idx]
		if s.Type == elf.SHT_NOBITS {
			continue
		}

		data, err := s.Data()
		if err != nil {
			return fmt.Errorf("read section %s: %w", name, err)
		}
		relocs, err := im.readRelocations(".rela" + name)
		if err != nil {
			return err
		}

		im.Regions = append(im.Regions, Region{
			Name:    name,
			Index:   elf.SectionIndex(idx),
			Kind:    kind,
			Addr:    uint32(s.Addr),
			Off:     uint32(s.Offset),
			Data:    data,
			Relocs:  relocs,
			Objects: im.objectsIn(elf.SectionIndex(idx)),
		})
	}
	return nil
}

// readRelocations decodes the Elf32_Rela entries of the named section. A
// missing section yields no relocations.
func (im *Image) readRelocations(name string) ([]Relocation, error) {
	s := im.File.Section(name)
	if s == nil {
		return nil, nil
	}
	data, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data)%12 != 0 {
		return nil, fmt.Errorf("read %s: size %d is not a multiple of the entry size", name, len(data))
	}

	order := im.File.ByteOrder
	relocs := make([]Relocation, 0, len(data)/12)
	for b := data; len(b) > 0; b = b[12:] {
		var r elf.Rela32
		r.Off = order.Uint32(b[0:4])
		r.Info = order.Uint32(b[4:8])
		r.Addend = int32(order.Uint32(b[8:12]))
		relocs = append(relocs, Relocation{
			Offset: r.Off,
			Symbol: elf.R_SYM32(r.Info),
			Type:   elf.R_TYPE32(r.Info),
			Addend: r.Addend,
		})
	}
	return relocs, nil
}

// objectsIn collects the named symbols defined in section idx.
func (im *Image) objectsIn(idx elf.SectionIndex) map[uint32]string {
	objs := make(map[uint32]string)
	for _, s := range im.Symbols[1:] {
		if s.Section != idx || s.Name == "" {
			continue
		}
		if s.Type == elf.STT_SECTION || s.Type == elf.STT_FILE {
			continue
		}
		objs[s.Value] = s.Name
	}
	return objs
}

// SymbolNames returns symbol names indexed like Symbols.
func (im *Image) SymbolNames() []string {
	names := make([]string, len(im.Symbols))
	for i, s := range im.Symbols {
		names[i] = s.Name
	}
	return names
}

// CodeRegions returns the regions to disassemble.
func (im *Image) CodeRegions() []Region {
	var out []Region
	for _, r := range im.Regions {
		if r.Kind == Code {
			out = append(out, r)
		}
	}
	return out
}

// RegionByIndex finds the region loaded from section idx.
func (im *Image) RegionByIndex(idx elf.SectionIndex) (*Region, bool) {
	for i := range im.Regions {
		if im.Regions[i].Index == idx {
			return &im.Regions[i], true
		}
	}
	return nil, false
}

// Section builds a fresh decoding context for the region. symbols is shared
// read-only between the contexts of one image.
func (r *Region) Section(symbols []string) *decode.Section {
	s := decode.NewSection(r.Name, r.Data, int64(r.Addr))
	s.Index = uint16(r.Index)
	s.Symbols = symbols
	for _, rel := range r.Relocs {
		s.Relocations = append(s.Relocations, decode.Relocation{Offset: int64(rel.Offset), Symbol: rel.Symbol})
	}
	for addr, name := range r.Objects {
		s.ObjectLabels[int64(addr)] = name
	}
	return s
}

// CodeSections returns a decoding context for every code region.
func (im *Image) CodeSections() []*decode.Section {
	names := im.SymbolNames()
	var out []*decode.Section
	for _, r := range im.CodeRegions() {
		out = append(out, r.Section(names))
	}
	return out
}
