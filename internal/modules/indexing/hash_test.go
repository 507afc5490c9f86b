package indexing

import "testing"

func TestContentHash(t *testing.T) {
	cases := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb924",
		"abc": "ba7816bf8f01cfea414140de5dae2223",
	}
	for in, want := range cases {
		got := ContentHash(in)
		if got != want {
			t.Fatalf("ContentHash(%q): want=%s got=%s", in, want, got)
		}
		if len(got) != ContentHashLen {
			t.Fatalf("ContentHash(%q) len: want=%d got=%d", in, ContentHashLen, len(got))
		}
	}
	if ContentHash("a\nb") == ContentHash("a b") {
		t.Fatalf("separator must affect hash")
	}
}
