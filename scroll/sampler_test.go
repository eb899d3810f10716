package scroll

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/promptcap/prompt"
)

// windowPage renders only the turns near the current position.
type windowPage struct {
	height int
	pos    int
	seen   []int
}

func (p *windowPage) ScrollHeight(context.Context, string) (int, error) { return p.height, nil }

func (p *windowPage) ScrollTo(_ context.Context, _ string, y int) error {
	p.pos = y
	p.seen = append(p.seen, y)
	return nil
}

func TestSampler_UnionAcrossPositions(t *testing.T) {
	page := &windowPage{height: 1000}
	visible := map[int][]string{
		0:    {"one", "two"},
		250:  {"two", "three"},
		500:  {"four"},
		750:  {"Four", "five"},
		1000: {"six"},
	}
	scrape := func(context.Context) ([]prompt.Prompt, error) {
		if page.pos == 500 {
			return nil, errors.New("transient")
		}
		var out []prompt.Prompt
		for i, c := range visible[page.pos] {
			out = append(out, prompt.Prompt{Content: c, Index: i})
		}
		return out, nil
	}

	got, err := NewSampler(fallback, noSleep).Sample(context.Background(), page, "#c", scrape)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	want := []string{"one", "two", "three", "Four", "five", "six"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", prompt.Contents(got), want)
	}
	for i, p := range got {
		if p.Content != want[i] || p.Index != i {
			t.Errorf("[%d] got %q/%d, want %q/%d", i, p.Content, p.Index, want[i], i)
		}
	}
	wantPos := []int{0, 250, 500, 750, 1000}
	for i, y := range wantPos {
		if page.seen[i] != y {
			t.Errorf("position %d: got %d, want %d", i, page.seen[i], y)
		}
	}
}

func TestSampler_NoContainerScrapesOnce(t *testing.T) {
	calls := 0
	scrape := func(context.Context) ([]prompt.Prompt, error) {
		calls++
		return []prompt.Prompt{{Content: "only"}}, nil
	}
	got, err := NewSampler(fallback, noSleep).Sample(context.Background(), &windowPage{}, "", scrape)
	if err != nil || len(got) != 1 || calls != 1 {
		t.Fatalf("got %v err=%v calls=%d", got, err, calls)
	}
}
