package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dumc-project/dumc/compiler"
)

func TestReportOrdersByFileThenPosition(t *testing.T) {
	c := NewCollector()
	c.Add("b.dm", &compiler.CompileError{Kind: compiler.ParseError, Msg: "first in b", HasPos: true,
		Pos: compiler.Position{Offset: 5, Line: 1, Col: 6}})
	c.Add("a.dm", &compiler.CompileError{Kind: compiler.SemanticError, Msg: "second decl", HasPos: true,
		Pos: compiler.Position{Offset: 20, Line: 2, Col: 1}})
	c.Add("a.dm", &compiler.CompileError{Kind: compiler.LexError, Msg: "first decl", HasPos: true,
		Pos: compiler.Position{Offset: 3, Line: 1, Col: 4}})
	c.Add(" z.dm", nil) // no-op

	if got, want := c.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	var buf bytes.Buffer
	c.Report(&buf)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "a.dm") || !strings.Contains(lines[0], "first decl") {
		t.Errorf("line 0 = %q, want a.dm's earlier-offset error first", lines[0])
	}
	if !strings.Contains(lines[1], "a.dm") || !strings.Contains(lines[1], "second decl") {
		t.Errorf("line 1 = %q, want a.dm's later-offset error second", lines[1])
	}
	if !strings.Contains(lines[2], "b.dm") {
		t.Errorf("line 2 = %q, want b.dm last (file sorts after a.dm)", lines[2])
	}
}

func TestFormatOffsetGroupsDigits(t *testing.T) {
	if got := FormatOffset(1234567); got == "1234567" {
		t.Errorf("FormatOffset(1234567) = %q, expected locale grouping to change formatting", got)
	}
}
