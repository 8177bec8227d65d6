package objdump

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dumc-project/dumc/compiler"
	"github.com/dumc-project/dumc/objfile"
)

func TestListSortsByOffset(t *testing.T) {
	src := []byte(`
@helper(x:int) { ret x }
@main() { ret helper(1) }
`)
	prog, err := compiler.ParseSource(src)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	obj, err := compiler.NewCodegen(compiler.Options{}).CompileProgram(prog)
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}

	var buf bytes.Buffer
	if err := objfile.Write(&buf, obj); err != nil {
		t.Fatalf("objfile.Write: %v", err)
	}

	syms, err := List(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(syms) != 2 {
		t.Fatalf("got %d symbols, want 2: %+v", len(syms), syms)
	}
	if syms[0].Name != "helper" || syms[1].Name != "main" {
		t.Errorf("got order %q, %q; want helper before main (program order = .text order)", syms[0].Name, syms[1].Name)
	}
	if syms[0].Value > syms[1].Value {
		t.Errorf("symbols not sorted by offset: %+v", syms)
	}
}

func TestFormatListsNameAndSize(t *testing.T) {
	out := Format([]Sym{{Name: "main", Value: 0, Size: 12}})
	if !strings.Contains(out, "main") || !strings.Contains(out, "12") {
		t.Errorf("Format output missing name/size: %q", out)
	}
}
