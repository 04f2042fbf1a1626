package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("tpl_", Default)
	id := gen()
	if !strings.HasPrefix(id, "tpl_") {
		t.Fatalf("got %q, want tpl_ prefix", id)
	}
	if len(id) <= len("tpl_") {
		t.Fatalf("got %q, want non-empty suffix", id)
	}
}
