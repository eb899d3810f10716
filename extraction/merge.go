package extraction

import (
	"github.com/hazyhaar/promptcap/prompt"
)

// Merge combines DOM-scraped and captured prompts under pref.
//
// dom and keylog return their own source alone. auto walks the DOM list in
// order, substituting the captured version of every prompt whose key
// matches, then appends the captured prompts the DOM never showed in
// capture order. When the DOM yields nothing, the captured list is the
// result. The output has unique keys and fresh indices.
func Merge(pref prompt.Preference, dom, captured []prompt.Prompt) []prompt.Prompt {
	dom = tagged(prompt.Dedup(dom), prompt.SourceDOM)
	captured = byTime(prompt.Dedup(captured))

	switch pref {
	case prompt.PreferDOM:
		return prompt.Reindex(dom)
	case prompt.PreferKeylog:
		return prompt.Reindex(captured)
	}

	if len(dom) == 0 {
		return prompt.Reindex(captured)
	}

	byKey := make(map[string]prompt.Prompt, len(captured))
	for _, p := range captured {
		byKey[p.Key()] = p
	}
	used := make(map[string]bool, len(captured))
	out := make([]prompt.Prompt, 0, len(dom)+len(captured))
	for _, p := range dom {
		k := p.Key()
		if c, ok := byKey[k]; ok {
			out = append(out, c)
			used[k] = true
			continue
		}
		out = append(out, p)
	}
	for _, c := range captured {
		if !used[c.Key()] {
			out = append(out, c)
		}
	}
	return prompt.Reindex(out)
}

// Captured joins this session's captures with the persisted ones for the
// same conversation. A live capture wins over its persisted copy.
func Captured(live, persisted []prompt.Prompt) []prompt.Prompt {
	all := make([]prompt.Prompt, 0, len(live)+len(persisted))
	all = append(all, live...)
	all = append(all, persisted...)
	return byTime(prompt.Dedup(all))
}

func tagged(ps []prompt.Prompt, src prompt.Source) []prompt.Prompt {
	for i := range ps {
		if ps[i].Source == "" {
			ps[i].Source = src
		}
	}
	return ps
}

func byTime(ps []prompt.Prompt) []prompt.Prompt {
	prompt.SortByTimestamp(ps)
	return ps
}
