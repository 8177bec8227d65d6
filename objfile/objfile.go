// Package objfile assembles a compiler.Object into a relocatable ELF64
// object file, the final stage of the pipeline described in spec §4.7.
//
// The section layout — creation order .text, .strtab, .symtab,
// .shstrtab, the shstrtab byte table, and the sh_name/sh_link/sh_info
// values — is grounded on original_source/src/obj.c's write_obj, which
// builds the same five sections (including the mandatory leading NULL
// section) via libelf. This package has no libelf available in Go, and
// none of the example repos wire an ELF-writing dependency, so it
// builds the section and symbol table structs itself using debug/elf's
// on-disk type definitions (Header64, Section64, Sym64, and the
// ET_/SHT_/SHF_/STB_/STT_ constants) rather than hand-rolling the ELF
// spec's struct layouts and bit patterns a second time.
package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/dumc-project/dumc/compiler"
)

const (
	ehdrSize = 64
	shdrSize = 64
	symSize  = 24
)

// shstrtab is the fixed section-name string table. Byte offsets below
// are the exact layout of original_source/src/obj.c's shstrtab literal,
// counted byte-by-byte against its sh_name assignments (1, 7, 17, 25)
// rather than trusting that file's approximate inline comments.
var shstrtab = []byte("\x00.text\x00.shstrtab\x00.symtab\x00.strtab\x00")

const (
	nameText     = 1
	nameShstrtab = 7
	nameSymtab   = 17
	nameStrtab   = 25
)

// section indices, fixed by the creation order write_obj uses.
const (
	shnText = iota + 1
	shnStrtab
	shnSymtab
	shnShstrtab
)

// Option customizes Write's output.
type Option func(*writeConfig)

type writeConfig struct {
	buildID string
}

// WithBuildID appends id to the string table as an unreferenced,
// .comment-style entry (not a symbol, not a .note.gnu.build-id
// section — see package buildid) that a cache can read back to verify
// an object's provenance.
func WithBuildID(id string) Option {
	return func(c *writeConfig) { c.buildID = id }
}

// Write serializes obj as a relocatable ELF64 object file to w.
func Write(w io.Writer, obj *compiler.Object, opts ...Option) error {
	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	strtab := buildStrtab(obj, cfg.buildID)
	symtab := buildSymtab(obj, strtab.offsets)

	textOff := ehdrSize
	strtabOff := align8(textOff + len(obj.Text))
	symtabOff := align8(strtabOff + len(strtab.bytes))
	shstrtabOff := symtabOff + len(symtab)*symSize
	shoff := align8(shstrtabOff + len(shstrtab))

	ehdr := elf.Header64{}
	copy(ehdr.Ident[:], []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	ehdr.Type = uint16(elf.ET_REL)
	ehdr.Machine = uint16(elf.EM_X86_64)
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Shoff = uint64(shoff)
	ehdr.Ehsize = ehdrSize
	ehdr.Shentsize = shdrSize
	ehdr.Shnum = 5
	ehdr.Shstrndx = shnShstrtab

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &ehdr); err != nil {
		return err
	}
	buf.Write(obj.Text)
	padTo(&buf, strtabOff)
	buf.Write(strtab.bytes)
	padTo(&buf, symtabOff)
	for i := range symtab {
		if err := binary.Write(&buf, binary.LittleEndian, &symtab[i]); err != nil {
			return err
		}
	}
	buf.Write(shstrtab)
	padTo(&buf, shoff)

	shdrs := [5]elf.Section64{
		{}, // mandatory NULL section
		{
			Name: nameText, Type: uint32(elf.SHT_PROGBITS),
			Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Off:   uint64(textOff), Size: uint64(len(obj.Text)), Addralign: 8,
		},
		{
			Name: nameStrtab, Type: uint32(elf.SHT_STRTAB),
			Flags: uint64(elf.SHF_STRINGS | elf.SHF_ALLOC),
			Off:   uint64(strtabOff), Size: uint64(len(strtab.bytes)), Addralign: 1,
		},
		{
			Name: nameSymtab, Type: uint32(elf.SHT_SYMTAB),
			Flags:     uint64(elf.SHF_ALLOC),
			Off:       uint64(symtabOff),
			Size:      uint64(len(symtab) * symSize),
			Link:      shnStrtab,
			Info:      2, // index of first non-local symbol
			Addralign: 8,
			Entsize:   symSize,
		},
		{
			Name: nameShstrtab, Type: uint32(elf.SHT_STRTAB),
			Flags: uint64(elf.SHF_STRINGS | elf.SHF_ALLOC),
			Off:   uint64(shstrtabOff), Size: uint64(len(shstrtab)), Addralign: 1,
		},
	}
	for i := range shdrs {
		if err := binary.Write(&buf, binary.LittleEndian, &shdrs[i]); err != nil {
			return err
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

type strtabResult struct {
	bytes   []byte
	offsets []uint32 // offsets[i] is obj.Symbols[i]'s name offset
}

// buildStrtab lays out the string table with a leading NUL (slot 0, the
// null symbol's empty name) followed by ".text\0" (slot 1, the .text
// section symbol's name) followed by each function's name, matching
// gen_object's append_strtab call order. An optional build ID comment
// is appended last, after every symbol name, so it never shifts a
// symbol's name offset.
func buildStrtab(obj *compiler.Object, buildID string) strtabResult {
	b := []byte{0}
	b = append(b, ".text\x00"...)
	offsets := make([]uint32, len(obj.Symbols))
	for i, sym := range obj.Symbols {
		offsets[i] = uint32(len(b))
		b = append(b, sym.Name...)
		b = append(b, 0)
	}
	if buildID != "" {
		b = append(b, "dumc build-id:"...)
		b = append(b, buildID...)
		b = append(b, 0)
	}
	return strtabResult{bytes: b, offsets: offsets}
}

// buildSymtab builds the null entry, the .text section symbol, and one
// GLOBAL FUNC entry per compiled function, in that fixed order (spec
// §4.7: "info = index of first non-local symbol" is always 2).
func buildSymtab(obj *compiler.Object, nameOffsets []uint32) []elf.Sym64 {
	syms := make([]elf.Sym64, 0, len(obj.Symbols)+2)
	syms = append(syms, elf.Sym64{})
	syms = append(syms, elf.Sym64{
		Name:  1,
		Info:  elf.ST_INFO(elf.STB_LOCAL, elf.STT_SECTION),
		Shndx: shnText,
	})
	for i, sym := range obj.Symbols {
		syms = append(syms, elf.Sym64{
			Name:  nameOffsets[i],
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: shnText,
			Value: uint64(sym.Value),
			Size:  uint64(sym.Size),
		})
	}
	return syms
}

func align8(n int) int { return (n + 7) &^ 7 }

func padTo(buf *bytes.Buffer, target int) {
	for buf.Len() < target {
		buf.WriteByte(0)
	}
}
