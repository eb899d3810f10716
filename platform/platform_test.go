package platform

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDetect_PriorityOrder(t *testing.T) {
	cases := []struct {
		url  string
		want Platform
	}{
		{"https://chatgpt.com/c/abc-123", ChatGPT},
		{"https://chat.openai.com/", ChatGPT},
		{"https://claude.ai/chat/0f1e", Claude},
		{"https://gemini.google.com/app/9a8b", Gemini},
		{"https://www.perplexity.ai/search/how-to-x.Yz", Perplexity},
		{"https://chat.deepseek.com/a/chat/s/77", DeepSeek},
		{"https://lovable.dev/projects/p-1", Lovable},
		{"https://bolt.new/~/sb1-xyz", Bolt},
		{"https://www.cursor.com/agents/a1", Cursor},
		{"https://www.meta.ai/c/42", MetaAI},
		{"https://example.com/chat", Generic},
	}
	for _, c := range cases {
		a := Detect(c.url)
		if a == nil {
			t.Errorf("%s: no adapter", c.url)
			continue
		}
		if a.Platform != c.want {
			t.Errorf("%s: got %s, want %s", c.url, a.Platform, c.want)
		}
	}

	reg := Registry()
	if reg[len(reg)-1].Platform != Generic {
		t.Fatal("generic adapter must be last")
	}
}

func TestDetect_Unsupported(t *testing.T) {
	for _, u := range []string{"about:blank", "chrome://extensions", "file:///tmp/x.html", "::bad"} {
		if a := Detect(u); a != nil {
			t.Errorf("%s: got %s, want unsupported", u, a.Platform)
		}
		if _, ok := Name(u); ok {
			t.Errorf("Name(%s): want unsupported", u)
		}
	}
	if name, ok := Name("https://claude.ai/new"); !ok || name != "Claude" {
		t.Errorf("Name(claude) = %q, %v", name, ok)
	}
}

func TestDetect_HostSuffixIsDotBounded(t *testing.T) {
	if a := Detect("https://notclaude.ai/chat/1"); a.Platform != Generic {
		t.Fatalf("got %s, want generic", a.Platform)
	}
}

func TestConversationID(t *testing.T) {
	a, _ := Lookup(ChatGPT)
	if id := a.ConversationID("https://chatgpt.com/c/6650-ab?model=x"); id != "6650-ab" {
		t.Errorf("got %q", id)
	}
	if id := a.ConversationID("https://chatgpt.com/"); id != "" {
		t.Errorf("got %q, want empty", id)
	}
	g, _ := Lookup(Generic)
	if id := g.ConversationID("https://example.com/c/1"); id != "" {
		t.Errorf("generic: got %q", id)
	}
}

func TestStoreKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	if k := StoreKey(Claude, "abc", at); k != "claude:abc" {
		t.Errorf("got %q", k)
	}
	if k := StoreKey(Claude, "", at); k != "claude:2026-03-04" {
		t.Errorf("got %q", k)
	}
}

type fakeFinder struct {
	scrollable map[string]bool
	largest    string
	err        error
}

func (f *fakeFinder) Scrollable(_ context.Context, sel string) (bool, error) {
	return f.scrollable[sel], f.err
}

func (f *fakeFinder) LargestScrollable(context.Context) (string, error) {
	return f.largest, nil
}

func TestScrollContainer(t *testing.T) {
	a, _ := Lookup(Claude)
	ctx := context.Background()

	f := &fakeFinder{scrollable: map[string]bool{a.Scroll[1]: true}, largest: "#fallback"}
	if got := a.ScrollContainer(ctx, f); got != a.Scroll[1] {
		t.Errorf("got %q, want platform selector %q", got, a.Scroll[1])
	}

	f = &fakeFinder{largest: "#fallback"}
	if got := a.ScrollContainer(ctx, f); got != "#fallback" {
		t.Errorf("got %q, want fallback", got)
	}

	f = &fakeFinder{scrollable: map[string]bool{a.Scroll[0]: true}, err: errors.New("eval failed"), largest: "#fallback"}
	if got := a.ScrollContainer(ctx, f); got != "#fallback" {
		t.Errorf("selector error: got %q, want fallback", got)
	}

	bad := &Adapter{Scroll: []string{"div["}}
	if got := bad.ScrollContainer(ctx, &fakeFinder{scrollable: map[string]bool{"div[": true}}); got != "" {
		t.Errorf("malformed selector: got %q, want empty", got)
	}
}
