// Package diag implements `dumc -keep-going`'s batch diagnostics: every
// input file is compiled even after an earlier file fails (within one
// file, compilation stops at its first error), and every resulting error
// is reported together, sorted by file then source position.
//
// The ordered collection itself is grounded on storage/index.go's use
// of google/btree (a btree.BTreeG keyed by a custom Less, same pattern:
// ReplaceOrInsert to add, an Ascend-family walk to drain in order —
// index.go uses AscendRange over a delta window, this package uses a
// plain Ascend over everything). Formatting is
// grounded on the DOMAIN STACK's golang.org/x/text/message binding:
// Printer's locale-aware %d grouping gives large byte offsets
// thousands separators for readability in long diagnostic listings.
package diag

import (
	"io"
	"sync"

	"github.com/google/btree"
	"golang.org/x/text/message"

	"github.com/dumc-project/dumc/compiler"
)

type entry struct {
	file string
	err  *compiler.CompileError
	seq  int
}

func less(a, b entry) bool {
	if a.file != b.file {
		return a.file < b.file
	}
	if a.err.HasPos != b.err.HasPos {
		return !a.err.HasPos // positionless errors sort first within a file
	}
	if a.err.HasPos && a.err.Pos.Offset != b.err.Pos.Offset {
		return a.err.Pos.Offset < b.err.Pos.Offset
	}
	return a.seq < b.seq
}

// Collector accumulates compile errors from many functions or files and
// reports them in a stable, source-ordered sequence. Safe for
// concurrent use by the -jobs parallel driver in main.go.
type Collector struct {
	mu   sync.Mutex
	tree *btree.BTreeG[entry]
	seq  int
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{tree: btree.NewG(8, less)}
}

// Add records err against file. A nil err is a no-op, so callers can
// write `c.Add(path, compileErr)` unconditionally.
func (c *Collector) Add(file string, err *compiler.CompileError) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.ReplaceOrInsert(entry{file: file, err: err, seq: c.seq})
	c.seq++
}

// Len reports how many errors have been collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Len()
}

// Report writes every collected error to w, ordered by file and then
// source position, one per line.
func (c *Collector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := message.NewPrinter(message.MatchLanguage("en"))
	c.tree.Ascend(func(e entry) bool {
		if e.err.HasPos {
			p.Fprintf(w, "%s:%d:%d (byte %d): %s: %s\n",
				e.file, e.err.Pos.Line, e.err.Pos.Col, e.err.Pos.Offset, e.err.Kind, e.err.Msg)
		} else {
			p.Fprintf(w, "%s: %s: %s\n", e.file, e.err.Kind, e.err.Msg)
		}
		return true
	})
}

// FormatOffset renders a byte offset with locale-grouped digits, for
// use in objdump's symbol listing as well as diagnostics.
func FormatOffset(n int) string {
	p := message.NewPrinter(message.MatchLanguage("en"))
	return p.Sprintf("%d", n)
}
