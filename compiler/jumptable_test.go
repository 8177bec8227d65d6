package compiler

import "testing"

func patchRecorder() (func(int, int32) error, map[int]int32) {
	patches := make(map[int]int32)
	return func(fieldOffset int, displacement int32) error {
		patches[fieldOffset] = displacement
		return nil
	}, patches
}

func TestResolveComputesRel32Displacement(t *testing.T) {
	patcher, patches := patchRecorder()
	jt := NewJumpTable(patcher)

	label := SimpleLabel(LabelBlockEnd)
	jt.Insert(10, label, OpJmpRel32) // 5-byte jmp at offset 10, rel32 field at 11

	if err := jt.Resolve(label, 20); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := int32(20 - 10 - 5)
	if got, ok := patches[11]; !ok || got != want {
		t.Errorf("patch at field offset 11 = %v (ok=%v), want %d", got, ok, want)
	}
	if !jt.Empty() {
		t.Errorf("table should be empty after resolving its only entry")
	}
}

func TestResolveOnlyPatchesMatchingLabel(t *testing.T) {
	patcher, patches := patchRecorder()
	jt := NewJumpTable(patcher)

	a := SimpleLabel(LabelLoopStart)
	b := SimpleLabel(LabelRet)
	jt.Insert(0, a, OpJmpRel32)
	jt.Insert(10, b, OpJccRel32)

	if err := jt.Resolve(a, 5); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("got %d patches, want 1", len(patches))
	}
	if jt.Empty() {
		t.Errorf("entry targeting the other label must survive")
	}
	labels := jt.PendingLabels()
	if len(labels) != 1 || labels[0] != b {
		t.Errorf("PendingLabels() = %v, want [%v]", labels, b)
	}
}

func TestResolveRejectsOutOfRangeDisplacement(t *testing.T) {
	patcher, _ := patchRecorder()
	jt := NewJumpTable(patcher)
	label := SimpleLabel(LabelBlockEnd)
	jt.Insert(0, label, OpJmpRel32)

	if err := jt.Resolve(label, 1<<32); err == nil {
		t.Fatalf("expected an error for a displacement outside rel32 range")
	}
}

func TestMergeBubblesEntriesUpInOrder(t *testing.T) {
	patcher, _ := patchRecorder()

	dst := NewJumpTable(patcher)
	src := NewJumpTable(patcher)

	label := SimpleLabel(LabelLoopStart)
	src.Insert(30, label, OpJmpRel32)
	src.Insert(10, label, OpJmpRel32)

	Merge(dst, src)

	if !src.Empty() {
		t.Errorf("src must be drained after Merge")
	}
	if len(dst.entries) != 2 {
		t.Fatalf("dst should have both entries, got %d", len(dst.entries))
	}
	if dst.entries[0].byteOffset != 10 || dst.entries[1].byteOffset != 30 {
		t.Errorf("Merge must sort src's entries by byte offset before appending, got %+v", dst.entries)
	}
}

func TestNextCondLabelDistinguishesNestingLevel(t *testing.T) {
	l1 := NextCondLabel(1)
	l2 := NextCondLabel(2)
	if l1 == l2 {
		t.Errorf("distinct nesting levels must produce distinct labels")
	}
}
