package trace

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/dumc-project/dumc/compiler"
)

func TestAttachRecordsEveryInstruction(t *testing.T) {
	var compressed bytes.Buffer
	cg := compiler.NewCodegen(compiler.Options{})
	sink := Attach(cg, &compressed)

	prog, err := compiler.ParseSource([]byte("@main() { ret 1 }"))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if _, err := cg.CompileProgram(prog); err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var plain bytes.Buffer
	zr := lz4.NewReader(&compressed)
	if _, err := plain.ReadFrom(zr); err != nil {
		t.Fatalf("decompress: %v", err)
	}

	lines := strings.Split(strings.TrimRight(plain.String(), "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("expected at least one recorded instruction")
	}
	for _, line := range lines {
		if _, err := hex.DecodeString(line); err != nil {
			t.Errorf("line %q is not valid hex: %v", line, err)
		}
	}
}
