package cache

import "testing"

func TestParseURL(t *testing.T) {
	cases := []struct {
		raw        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"s3://my-bucket/dumc-cache", "my-bucket", "dumc-cache", false},
		{"s3://my-bucket/dumc-cache/", "my-bucket", "dumc-cache", false},
		{"s3://my-bucket", "my-bucket", "", false},
		{"http://my-bucket", "", "", true},
		{"s3:///prefix", "", "", true},
	}
	for _, c := range cases {
		got, err := ParseURL(c.raw)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseURL(%q): expected error, got %+v", c.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseURL(%q): %v", c.raw, err)
		}
		if got.Bucket != c.wantBucket || got.Prefix != c.wantPrefix {
			t.Errorf("ParseURL(%q) = %+v, want bucket=%q prefix=%q", c.raw, got, c.wantBucket, c.wantPrefix)
		}
	}
}

func TestKeyIsStableAndContentAddressed(t *testing.T) {
	a := Key([]byte("@main() { ret 1 }"))
	b := Key([]byte("@main() { ret 1 }"))
	c := Key([]byte("@main() { ret 2 }"))
	if a != b {
		t.Errorf("Key not stable across calls: %q != %q", a, b)
	}
	if a == c {
		t.Errorf("Key collided for different sources")
	}
	if len(a) != 64 { // hex-encoded sha256
		t.Errorf("Key length = %d, want 64", len(a))
	}
}

func TestObjectKeyRespectsPrefix(t *testing.T) {
	withPrefix := New(Config{Bucket: "b", Prefix: "p"})
	if got, want := withPrefix.objectKey("abc"), "p/abc.o.xz"; got != want {
		t.Errorf("objectKey = %q, want %q", got, want)
	}
	noPrefix := New(Config{Bucket: "b"})
	if got, want := noPrefix.objectKey("abc"), "abc.o.xz"; got != want {
		t.Errorf("objectKey = %q, want %q", got, want)
	}
}
