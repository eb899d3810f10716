package extraction

import (
	"testing"

	"github.com/hazyhaar/promptcap/prompt"
)

func TestLatest(t *testing.T) {
	l := NewLatest()
	if l.Get() != nil {
		t.Fatal("new cell not empty")
	}
	ch, cancel := l.Subscribe()
	defer cancel()

	a := &prompt.ExtractionResult{ID: "a"}
	b := &prompt.ExtractionResult{ID: "b"}
	l.Set(a)
	l.Set(b)
	if l.Get() != b {
		t.Fatal("Get did not return the newest value")
	}
	// The slow subscriber only sees the newest value.
	if got := <-ch; got != b {
		t.Fatalf("subscriber got %s", got.ID)
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %v", v)
	default:
	}

	l.Clear()
	if l.Get() != nil {
		t.Fatal("Clear left a value")
	}
}

func TestLatest_CancelCloses(t *testing.T) {
	l := NewLatest()
	ch, cancel := l.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}
	l.Set(&prompt.ExtractionResult{ID: "after"})
}
