package repl

import "testing"

func TestBalanced(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"@main() { ret 1 }", true},
		{"@main() {", false},
		{"@main() { if (1) {", false},
		{"@main() { if (1) { ret 1 } }", true},
		{"", true},
		{"}", true}, // closing-without-opening is not "incomplete"
	}
	for _, c := range cases {
		if got := balanced(c.in); got != c.want {
			t.Errorf("balanced(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
