package capture

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func appendLine(t *testing.T, path string, ev Event) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	b, _ := json.Marshal(ev)
	if _, err := f.Write(append(b, '\n')); err != nil {
		t.Fatal(err)
	}
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestSpoolSource_ReplaysAndTails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	appendLine(t, path, chatEvent("existing prompt", t0))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Event, 8)
	src := NewSpoolSource(dir, nil)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	if ev := recv(t, out); ev.Text != "existing prompt" {
		t.Fatalf("got %q", ev.Text)
	}

	appendLine(t, path, chatEvent("new prompt", t0))
	if ev := recv(t, out); ev.Text != "new prompt" {
		t.Fatalf("got %q", ev.Text)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSpoolSource_PartialLineWaits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	os.WriteFile(path, []byte(`{"text":"half`), 0o644)

	src := NewSpoolSource(dir, nil)
	out := make(chan Event, 2)
	if err := src.drain(context.Background(), path, out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatal("partial line emitted")
	}

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString(` done"}` + "\n")
	f.Close()
	if err := src.drain(context.Background(), path, out); err != nil {
		t.Fatal(err)
	}
	if ev := recv(t, out); ev.Text != "half done" {
		t.Fatalf("got %q", ev.Text)
	}
}
