package prompt

import (
	"strings"
	"testing"
)

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Hello World",
		"  hello\t\tWORLD \n",
		"Write a Story About a CAT",
		strings.Repeat("ab ", 400),
		strings.Repeat("x", MaxKeyLen-1) + " y",
		"ÉCOLE  Été",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
		if n := len([]rune(once)); n > MaxKeyLen {
			t.Errorf("Normalize(%q) has %d runes, want <= %d", in, n, MaxKeyLen)
		}
	}
}

func TestNormalize_CaseAndWhitespaceVariants(t *testing.T) {
	a := Normalize("Make the   button\nBLUE")
	b := Normalize("make the button blue")
	if a != b {
		t.Fatalf("got %q and %q, want equal", a, b)
	}
}

func TestDedup_KeepsFirst(t *testing.T) {
	in := []Prompt{
		{Content: "Hello", Index: 0, Source: SourceDOM},
		{Content: "hello ", Index: 1, Source: SourceKeylog},
		{Content: "   ", Index: 2},
		{Content: "World", Index: 3},
	}
	got := Dedup(in)
	if len(got) != 2 {
		t.Fatalf("got %d prompts, want 2", len(got))
	}
	if got[0].Source != SourceDOM || got[1].Content != "World" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestReindexAndSort(t *testing.T) {
	ps := []Prompt{
		{Content: "c", Timestamp: 30},
		{Content: "a", Timestamp: 10},
		{Content: "b", Timestamp: 10},
	}
	SortByTimestamp(ps)
	Reindex(ps)
	want := []string{"a", "b", "c"}
	for i, p := range ps {
		if p.Content != want[i] || p.Index != i {
			t.Errorf("[%d] got %q/%d, want %q/%d", i, p.Content, p.Index, want[i], i)
		}
	}
}

func TestParse(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeCapture {
		t.Errorf("ParseMode(\"\") = %q, %v", m, err)
	}
	if _, err := ParseMode("draft"); err == nil {
		t.Error("ParseMode(draft): expected error")
	}
	if p, err := ParsePreference("keylog"); err != nil || p != PreferKeylog {
		t.Errorf("ParsePreference(keylog) = %q, %v", p, err)
	}
	if _, err := ParsePreference("ocr"); err == nil {
		t.Error("ParsePreference(ocr): expected error")
	}
}
