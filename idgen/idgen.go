// Package idgen generates identifiers for extraction results and capture
// events. Generators are plain functions so tests can swap in a
// deterministic sequence.
package idgen

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// IDs sort by creation time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator yielding prefix1, prefix2, ... .
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

// Extraction and Capture are the generators used for ExtractionResult and
// captured prompt identifiers.
var (
	Extraction Generator = Prefixed("ext_", UUIDv7())
	Capture    Generator = Prefixed("cap_", UUIDv7())
)

// Parse validates an identifier, optionally prefixed ("ext_<uuid>"), and
// returns it unchanged.
func Parse(s string) (string, error) {
	raw := s
	if i := strings.IndexByte(s, '_'); i >= 0 {
		raw = s[i+1:]
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return s, nil
}
