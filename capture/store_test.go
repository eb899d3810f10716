package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/promptcap/idgen"
	"github.com/hazyhaar/promptcap/kvstore"
	"github.com/hazyhaar/promptcap/platform"
	"github.com/hazyhaar/promptcap/prompt"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...StoreOption) (*Store, *kvstore.Namespace) {
	t.Helper()
	ns := kvstore.NewNamespace(kvstore.NewMemory(), Namespace)
	opts = append([]StoreOption{WithIDGenerator(idgen.Sequence("cap_")), WithStoreClock(func() time.Time { return t0 })}, opts...)
	return NewStore(ns, opts...), ns
}

func chatEvent(text string, at time.Time) Event {
	return Event{Text: text, URL: "https://chatgpt.com/c/abc123", At: at}
}

func TestCapture_RecordsLiveAndPersisted(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	p, err := s.Capture(ctx, chatEvent("  write a story about a cat  ", t0))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if p.Content != "write a story about a cat" || p.Source != prompt.SourceKeylog || p.ID != "cap_1" {
		t.Fatalf("Capture: got %+v", p)
	}
	if p.Platform != "chatgpt" || p.ConversationID != "abc123" || p.Timestamp != t0.UnixMilli() {
		t.Fatalf("Capture: metadata %+v", p)
	}

	live := s.Live(platform.ChatGPT, "abc123", t0)
	if len(live) != 1 {
		t.Fatalf("Live: got %d", len(live))
	}
	stored, err := s.Persisted(ctx, platform.ChatGPT, "abc123", t0)
	if err != nil {
		t.Fatalf("Persisted: %v", err)
	}
	if len(stored) != 1 || stored[0].Source != prompt.SourcePersisted {
		t.Fatalf("Persisted: got %+v", stored)
	}
}

func TestCapture_SensitiveNeverStored(t *testing.T) {
	ctx := context.Background()
	s, ns := newTestStore(t)

	_, err := s.Capture(ctx, chatEvent("contact user@example.com about the invoice", t0))
	if !errors.Is(err, ErrSensitive) {
		t.Fatalf("Capture: got %v, want ErrSensitive", err)
	}
	if live := s.Live(platform.ChatGPT, "abc123", t0); len(live) != 0 {
		t.Fatalf("Live: got %d", len(live))
	}
	all, _ := ns.Get(ctx)
	if len(all) != 0 {
		t.Fatalf("persisted namespace not empty: %v", all)
	}
}

func TestCapture_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.Capture(ctx, chatEvent("Make the button blue", t0)); err != nil {
		t.Fatal(err)
	}
	_, err := s.Capture(ctx, chatEvent("make  the BUTTON blue", t0.Add(time.Second)))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Capture: got %v, want ErrDuplicate", err)
	}
	if live := s.Live(platform.ChatGPT, "abc123", t0); len(live) != 1 {
		t.Fatalf("Live: got %d", len(live))
	}
}

func TestCapture_DuplicateOfPersistedRejectedAfterRestart(t *testing.T) {
	ctx := context.Background()
	ns := kvstore.NewNamespace(kvstore.NewMemory(), Namespace)
	clock := WithStoreClock(func() time.Time { return t0 })

	first := NewStore(ns, clock)
	if _, err := first.Capture(ctx, chatEvent("Make the button blue", t0)); err != nil {
		t.Fatal(err)
	}

	restarted := NewStore(ns, clock)
	_, err := restarted.Capture(ctx, chatEvent("make the button blue", t0.Add(time.Hour)))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Capture: got %v, want ErrDuplicate", err)
	}
	if live := restarted.Live(platform.ChatGPT, "abc123", t0); len(live) != 0 {
		t.Fatalf("Live: got %+v", live)
	}
	stored, _ := restarted.Persisted(ctx, platform.ChatGPT, "abc123", t0)
	if len(stored) != 1 {
		t.Fatalf("Persisted: got %d", len(stored))
	}
}

func TestCapture_HTMLStripped(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.Capture(context.Background(), Event{
		HTML: `<p>fix <b>this</b> &amp; that</p>`,
		URL:  "https://claude.ai/chat/9f1c",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Content != "fix this & that" {
		t.Fatalf("Content = %q", p.Content)
	}
	if p.Timestamp != t0.UnixMilli() {
		t.Fatalf("Timestamp = %d", p.Timestamp)
	}
}

func TestCapture_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Capture(context.Background(), chatEvent("   ", t0)); !errors.Is(err, ErrEmpty) {
		t.Fatalf("got %v", err)
	}
}

func TestCapture_PersistedLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithLimit(3))
	for i, text := range []string{"one", "two", "three", "four"} {
		if _, err := s.Capture(ctx, chatEvent(text, t0.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	stored, _ := s.Persisted(ctx, platform.ChatGPT, "abc123", t0)
	if got := prompt.Contents(stored); len(got) != 3 || got[0] != "two" || got[2] != "four" {
		t.Fatalf("Persisted: got %v", got)
	}
	if stored[0].Index != 0 || stored[2].Index != 2 {
		t.Fatalf("Persisted: indices not renumbered: %+v", stored)
	}
}

func TestCapture_DateFallbackKey(t *testing.T) {
	ctx := context.Background()
	s, ns := newTestStore(t)
	if _, err := s.Capture(ctx, Event{Text: "hello there", URL: "https://chatgpt.com/", At: t0}); err != nil {
		t.Fatal(err)
	}
	all, _ := ns.Get(ctx)
	if _, ok := all["chatgpt:2026-03-01"]; !ok {
		t.Fatalf("keys: %v", all)
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Capture(ctx, chatEvent("hello", t0))
	if err := s.Forget(ctx, platform.ChatGPT, "abc123", t0); err != nil {
		t.Fatal(err)
	}
	stored, _ := s.Persisted(ctx, platform.ChatGPT, "abc123", t0)
	if len(stored) != 0 || len(s.Live(platform.ChatGPT, "abc123", t0)) != 0 {
		t.Fatal("Forget left captures behind")
	}
}
