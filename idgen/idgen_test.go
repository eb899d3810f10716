package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || len(strings.Split(id, "-")) != 5 {
		t.Fatalf("UUIDv7: unexpected format %q", id)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixedGenerators(t *testing.T) {
	if id := Extraction(); !strings.HasPrefix(id, "ext_") {
		t.Fatalf("Extraction: got %q", id)
	}
	if id := Capture(); !strings.HasPrefix(id, "cap_") {
		t.Fatalf("Capture: got %q", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("t")
	if a, b := gen(), gen(); a != "t1" || b != "t2" {
		t.Fatalf("Sequence: got %q, %q", a, b)
	}
}

func TestParse(t *testing.T) {
	id := Extraction()
	if got, err := Parse(id); err != nil || got != id {
		t.Fatalf("Parse(%q) = %q, %v", id, got, err)
	}
	if _, err := Parse("ext_not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error")
	}
}
