package extraction

import (
	"errors"
	"testing"
	"time"
)

func TestGuard_RejectsConcurrent(t *testing.T) {
	g := NewGuard(time.Minute, nil)
	release, err := g.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Acquire(); !errors.Is(err, ErrInProgress) {
		t.Fatalf("second Acquire: got %v", err)
	}
	if !g.Busy() {
		t.Fatal("Busy = false while held")
	}
	release()
	release()
	r2, err := g.Acquire()
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	r2()
}

func TestGuard_SafetyTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	g := NewGuard(60*time.Second, nil)
	g.now = func() time.Time { return now }

	stale, err := g.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(59 * time.Second)
	if _, err := g.Acquire(); !errors.Is(err, ErrInProgress) {
		t.Fatalf("before timeout: got %v", err)
	}
	now = now.Add(2 * time.Second)
	fresh, err := g.Acquire()
	if err != nil {
		t.Fatalf("after timeout: %v", err)
	}

	// The stuck holder finishing late must not release the new holder.
	stale()
	if _, err := g.Acquire(); !errors.Is(err, ErrInProgress) {
		t.Fatalf("stale release freed the guard: %v", err)
	}
	fresh()
	if g.Busy() {
		t.Fatal("Busy after release")
	}
}
