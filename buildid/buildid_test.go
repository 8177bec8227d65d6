package buildid

import "testing"

func TestNewIsUniqueAndWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		s := id.String()
		if seen[s] {
			t.Fatalf("duplicate build id %s after %d iterations", s, i)
		}
		seen[s] = true
		if id[6]&0xf0 != 0x40 {
			t.Fatalf("id %s: version nibble = %x, want 4", s, id[6]&0xf0)
		}
		if id[8]&0xc0 != 0x80 {
			t.Fatalf("id %s: variant bits = %x, want 10xxxxxx", s, id[8]&0xc0)
		}
	}
}
