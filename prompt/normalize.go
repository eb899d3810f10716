package prompt

import (
	"sort"
	"strings"
	"unicode"
)

// MaxKeyLen bounds the normalized form, in runes.
const MaxKeyLen = 500

// Normalize lowercases s, collapses whitespace runs to a single space and
// truncates to MaxKeyLen runes. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if r := []rune(s); len(r) > MaxKeyLen {
		s = strings.TrimRightFunc(string(r[:MaxKeyLen]), unicode.IsSpace)
	}
	return s
}

// Dedup keeps the first prompt for every key, preserving order. Prompts that
// normalize to the empty string are dropped.
func Dedup(prompts []Prompt) []Prompt {
	seen := make(map[string]struct{}, len(prompts))
	out := make([]Prompt, 0, len(prompts))
	for _, p := range prompts {
		k := p.Key()
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Reindex assigns sequential indices starting at zero, in place.
func Reindex(prompts []Prompt) []Prompt {
	for i := range prompts {
		prompts[i].Index = i
	}
	return prompts
}

// SortByTimestamp orders prompts by capture time, oldest first. Equal
// timestamps keep their relative order.
func SortByTimestamp(prompts []Prompt) {
	sort.SliceStable(prompts, func(i, j int) bool {
		return prompts[i].Timestamp < prompts[j].Timestamp
	})
}

// Contents returns the content of every prompt.
func Contents(prompts []Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Content
	}
	return out
}
