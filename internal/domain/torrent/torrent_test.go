package torrent

import "testing"

func TestPriorityValid(t *testing.T) {
	for _, p := range []Priority{0, 1, 6, 7} {
		if !p.Valid() {
			t.Fatalf("expected priority %d to be valid", p)
		}
	}
	for _, p := range []Priority{-1, 2, 5, 8} {
		if p.Valid() {
			t.Fatalf("expected priority %d to be invalid", p)
		}
	}
}

func TestNormalizeHash(t *testing.T) {
	h, ok := NormalizeHash("  ABCDEF0123456789ABCDEF0123456789ABCDEF01 ")
	if !ok {
		t.Fatalf("expected valid hash")
	}
	if h != "abcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("expected lower-cased hash, got %q", h)
	}
	if _, ok := NormalizeHash("xyz"); ok {
		t.Fatalf("expected short hash to be rejected")
	}
	if _, ok := NormalizeHash("g bcdef0123456789abcdef0123456789abcdef0"); ok {
		t.Fatalf("expected non-hex hash to be rejected")
	}
}
