// Package elftest builds small ELF32 objects for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

type Section struct {
	Name    string
	Type    elf.SectionType
	Addr    uint32
	Data    []byte
	Link    uint32
	Info    uint32
	EntSize uint32
}

type Symbol struct {
	Name  string
	Value uint32
	Info  byte
	Shndx uint16
}

// Build assembles a little-endian VideoCore ELF32 relocatable object.
// Section indices follow the order of sections, starting at 1. A
// .symtab/.strtab pair is appended when syms is not empty, followed by
// .shstrtab.
func Build(sections []Section, syms []Symbol) []byte {
	le := binary.LittleEndian

	if len(syms) > 0 {
		strtab := []byte{0}
		symtab := make([]byte, 16) // null symbol
		for _, s := range syms {
			entry := make([]byte, 16)
			le.PutUint32(entry[0:], uint32(len(strtab)))
			le.PutUint32(entry[4:], s.Value)
			entry[12] = s.Info
			le.PutUint16(entry[14:], s.Shndx)
			symtab = append(symtab, entry...)
			strtab = append(append(strtab, s.Name...), 0)
		}
		symIndex := uint32(len(sections) + 1)
		sections = append(sections,
			Section{Name: ".symtab", Type: elf.SHT_SYMTAB, Data: symtab, Link: symIndex + 1, Info: 1, EntSize: 16},
			Section{Name: ".strtab", Type: elf.SHT_STRTAB, Data: strtab},
		)
	}

	shstrtab := []byte{0}
	nameOff := make([]uint32, len(sections)+1)
	for i, s := range sections {
		nameOff[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, s.Name...), 0)
	}
	nameOff[len(sections)] = uint32(len(shstrtab))
	shstrtab = append(append(shstrtab, ".shstrtab"...), 0)
	sections = append(sections, Section{Name: ".shstrtab", Type: elf.SHT_STRTAB, Data: shstrtab})

	var body bytes.Buffer
	body.Write(make([]byte, 52))
	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		for body.Len()%4 != 0 {
			body.WriteByte(0)
		}
		offsets[i] = uint32(body.Len())
		body.Write(s.Data)
	}
	for body.Len()%4 != 0 {
		body.WriteByte(0)
	}
	shoff := uint32(body.Len())

	body.Write(make([]byte, 40)) // null section header
	for i, s := range sections {
		sh := make([]byte, 40)
		le.PutUint32(sh[0:], nameOff[i])
		le.PutUint32(sh[4:], uint32(s.Type))
		le.PutUint32(sh[12:], s.Addr)
		le.PutUint32(sh[16:], offsets[i])
		le.PutUint32(sh[20:], uint32(len(s.Data)))
		le.PutUint32(sh[24:], s.Link)
		le.PutUint32(sh[28:], s.Info)
		le.PutUint32(sh[32:], 1)
		le.PutUint32(sh[36:], s.EntSize)
		body.Write(sh)
	}

	out := body.Bytes()
	copy(out, []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	le.PutUint16(out[16:], uint16(elf.ET_REL))
	le.PutUint16(out[18:], uint16(elf.EM_VIDEOCORE3))
	le.PutUint32(out[20:], uint32(elf.EV_CURRENT))
	le.PutUint32(out[32:], shoff)
	le.PutUint16(out[40:], 52)
	le.PutUint16(out[46:], 40)
	le.PutUint16(out[48:], uint16(len(sections)+1))
	le.PutUint16(out[50:], uint16(len(sections)))
	return out
}

// Rela encodes one Elf32_Rela entry with a zero addend.
func Rela(offset, sym, typ uint32) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:], offset)
	binary.LittleEndian.PutUint32(b[4:], sym<<8|typ)
	return b
}

func SymInfo(bind elf.SymBind, typ elf.SymType) byte {
	return byte(bind)<<4 | byte(typ)
}
