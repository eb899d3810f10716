package compile

import (
	"errors"
	"strings"
	"unicode"

	"github.com/hazyhaar/promptcap/prompt"
)

// ErrNoPrompts is returned when there is nothing to compile.
var ErrNoPrompts = errors.New("compile: no prompts")

// LocalSuffix is appended to every locally compiled summary.
const LocalSuffix = " (Compiled locally by PromptCap)"

// ProviderLocal attributes a summary to the local summarizer.
const ProviderLocal = "local"

// SimilarityThreshold is the score above which two prompts are merged.
const SimilarityThreshold = 0.85

// Similarity scores two texts in [0, 1]: 1 when their normalized forms
// are equal, the shorter/longer length ratio when one contains the other,
// otherwise the share of distinct tokens longer than two characters they
// have in common, over the larger token set.
func Similarity(a, b string) float64 {
	na, nb := prompt.Normalize(a), prompt.Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		short, long := len([]rune(na)), len([]rune(nb))
		if short > long {
			short, long = long, short
		}
		return float64(short) / float64(long)
	}
	ta, tb := tokens(na), tokens(nb)
	size := max(len(ta), len(tb))
	if size == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(size)
}

// Similar reports whether a and b should be merged.
func Similar(a, b string) bool {
	return Similarity(a, b) > SimilarityThreshold
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(t)) > 2 {
			set[t] = struct{}{}
		}
	}
	return set
}

// DedupSimilar keeps the first prompt of every group of similar prompts.
// Applying it to its own output removes nothing.
func DedupSimilar(prompts []prompt.Prompt) []prompt.Prompt {
	out := make([]prompt.Prompt, 0, len(prompts))
next:
	for _, p := range prompts {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		for _, kept := range out {
			if Similar(kept.Content, p.Content) {
				continue next
			}
		}
		out = append(out, p)
	}
	return out
}

// terminate appends a period unless s already ends a sentence.
func terminate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

// Local compiles prompts without any network call. It fails only when
// prompts is empty or holds only blank content.
func Local(prompts []prompt.Prompt) (*prompt.SummaryResult, error) {
	kept := DedupSimilar(prompts)
	if len(kept) == 0 {
		return nil, ErrNoPrompts
	}
	parts := make([]string, len(kept))
	for i, p := range kept {
		parts[i] = terminate(strings.Join(strings.Fields(p.Content), " "))
	}
	return &prompt.SummaryResult{
		Original:    prompts,
		Summary:     strings.Join(parts, " ") + LocalSuffix,
		PromptCount: prompt.Count{Before: len(prompts), After: len(kept)},
		Provider:    ProviderLocal,
	}, nil
}
