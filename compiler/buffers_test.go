package compiler

import "testing"

func TestGrowableBufferWriteAppends(t *testing.T) {
	b := NewGrowableBuffer("text", 0)
	if err := b.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write([]byte{4, 5}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
	want := []byte{1, 2, 3, 4, 5}
	got := b.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %v, want %v", got, want)
		}
	}
}

func TestGrowableBufferEnforcesCeiling(t *testing.T) {
	b := NewGrowableBuffer("symtab", 4)
	if err := b.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write up to ceiling: %v", err)
	}
	if err := b.Write([]byte{5}); err == nil {
		t.Fatalf("Write past ceiling should fail")
	}
}

func TestGrowableBufferWriteAtPatchesInPlace(t *testing.T) {
	b := NewGrowableBuffer("text", 0)
	b.Write([]byte{0xE9, 0, 0, 0, 0})
	if err := b.WriteAt(1, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	want := []byte{0xE9, 1, 2, 3, 4}
	got := b.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %v, want %v", got, want)
		}
	}
}

func TestGrowableBufferWriteAtOutOfRange(t *testing.T) {
	b := NewGrowableBuffer("text", 0)
	b.Write([]byte{1, 2, 3})
	if err := b.WriteAt(2, []byte{1, 2, 3}); err == nil {
		t.Fatalf("WriteAt past the end should fail, not grow the buffer")
	}
}
