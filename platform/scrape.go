package platform

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/promptcap/prompt"
)

// noise is UI chrome that leaks into message containers, keyed by
// normalized text.
var noise = map[string]bool{
	"copy": true, "copied": true, "copy code": true, "regenerate": true,
	"edit": true, "edit message": true, "retry": true, "share": true,
	"like": true, "dislike": true, "read aloud": true, "more": true,
	"show more": true, "show less": true, "you": true, "you said:": true,
	"good response": true, "bad response": true,
}

// IsNoise reports whether text is a UI label rather than a prompt.
func IsNoise(text string) bool {
	return noise[prompt.Normalize(text)]
}

// ScrapePrompts returns the user turns found in doc, in document order.
// Candidates are reduced to leaf containers, deduplicated by normalized text
// and stripped of UI noise. Malformed selectors are skipped. It never
// panics; a failure mid-scrape returns nil.
func (a *Adapter) ScrapePrompts(doc *html.Node) (out []prompt.Prompt) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	if doc == nil {
		return nil
	}

	var excludes []*Selector
	for _, sel := range a.Exclude {
		if s, err := Compile(sel); err == nil {
			excludes = append(excludes, s)
		}
	}

	seen := make(map[*html.Node]bool)
	var candidates []*html.Node
	for _, sel := range a.Prompts {
		s, err := Compile(sel)
		if err != nil {
			continue
		}
		for _, n := range s.MatchAll(doc) {
			if seen[n] || excluded(n, excludes) {
				continue
			}
			seen[n] = true
			candidates = append(candidates, n)
		}
	}

	leaves := leafOnly(candidates, seen)
	ordered := documentOrder(doc, leaves)

	keys := make(map[string]bool)
	for _, n := range ordered {
		var text string
		if a.RichText {
			text = RichText(n)
		} else {
			text = NodeText(n)
		}
		if text == "" || IsNoise(text) {
			continue
		}
		k := prompt.Normalize(text)
		if keys[k] {
			continue
		}
		keys[k] = true
		out = append(out, prompt.Prompt{
			Content:  text,
			Index:    len(out),
			Platform: string(a.Platform),
			Source:   prompt.SourceDOM,
		})
	}
	return out
}

func excluded(n *html.Node, excludes []*Selector) bool {
	for p := n; p != nil; p = p.Parent {
		for _, s := range excludes {
			if s.Matches(p) {
				return true
			}
		}
	}
	return false
}

// leafOnly drops every candidate that has another candidate below it.
func leafOnly(candidates []*html.Node, set map[*html.Node]bool) map[*html.Node]bool {
	inner := make(map[*html.Node]bool)
	for _, n := range candidates {
		for p := n.Parent; p != nil; p = p.Parent {
			if set[p] {
				inner[p] = true
			}
		}
	}
	leaves := make(map[*html.Node]bool, len(candidates))
	for _, n := range candidates {
		if !inner[n] {
			leaves[n] = true
		}
	}
	return leaves
}

func documentOrder(doc *html.Node, set map[*html.Node]bool) []*html.Node {
	out := make([]*html.Node, 0, len(set))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if set[n] {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// Parse parses an HTML document. Parse errors yield an empty document.
func Parse(src string) *html.Node {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		doc, _ = html.Parse(strings.NewReader(""))
	}
	return doc
}
