package platform

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector group. It supports the subset that
// chat UIs need:
//   - tag, *, #id, .class (repeatable)
//   - [attr], [attr=v], [attr*=v], [attr^=v], [attr$=v], [attr~=v]
//   - descendant (space) and child (>) combinators
//   - comma-separated alternatives
type Selector struct {
	raw  string
	alts [][]step
}

type step struct {
	c    compound
	comb byte // relation to the step on the left: 0, ' ' or '>'
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
}

type attrCond struct {
	key string
	op  byte // 0 (exists), '=', '*', '^', '$', '~'
	val string
}

var compiled sync.Map // string -> *Selector

// Compile parses a selector group. Results are memoized.
func Compile(sel string) (*Selector, error) {
	if v, ok := compiled.Load(sel); ok {
		return v.(*Selector), nil
	}
	s := &Selector{raw: sel}
	for _, part := range strings.Split(sel, ",") {
		steps, err := parseComplex(part)
		if err != nil {
			return nil, fmt.Errorf("platform: selector %q: %w", sel, err)
		}
		s.alts = append(s.alts, steps)
	}
	compiled.Store(sel, s)
	return s, nil
}

// String returns the source text.
func (s *Selector) String() string { return s.raw }

// Matches reports whether n matches any alternative.
func (s *Selector) Matches(n *html.Node) bool {
	for _, steps := range s.alts {
		if matchAt(steps, len(steps)-1, n) {
			return true
		}
	}
	return false
}

// MatchAll returns the descendants of root that match, in document order,
// each at most once.
func (s *Selector) MatchAll(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if s.Matches(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// QueryAll compiles sel and runs it against root.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	s, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(root), nil
}

func matchAt(steps []step, i int, n *html.Node) bool {
	if !steps[i].c.match(n) {
		return false
	}
	if i == 0 {
		return true
	}
	if steps[i].comb == '>' {
		return n.Parent != nil && matchAt(steps, i-1, n.Parent)
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if matchAt(steps, i-1, p) {
			return true
		}
	}
	return false
}

func (c compound) match(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && c.tag != "*" && n.Data != c.tag {
		return false
	}
	if c.id != "" && attr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v, ok := lookupAttr(n, a.key)
		if !ok {
			return false
		}
		switch a.op {
		case '=':
			ok = v == a.val
		case '*':
			ok = strings.Contains(v, a.val)
		case '^':
			ok = strings.HasPrefix(v, a.val)
		case '$':
			ok = strings.HasSuffix(v, a.val)
		case '~':
			ok = contains(strings.Fields(v), a.val)
		}
		if !ok {
			return false
		}
	}
	return true
}

func parseComplex(s string) ([]step, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty selector")
	}
	var steps []step
	var comb byte
	i := 0
	for i < len(s) {
		c, n, err := parseCompound(s[i:])
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{c: c, comb: comb})
		i += n

		j := i
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		switch {
		case j < len(s) && s[j] == '>':
			comb = '>'
			j++
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("dangling combinator")
			}
		case j > i:
			comb = ' '
		}
		i = j
	}
	return steps, nil
}

func parseCompound(s string) (compound, int, error) {
	var c compound
	i := 0
	for i < len(s) && isIdent(s[i]) {
		i++
	}
	c.tag = strings.ToLower(s[:i])
	if c.tag == "" && i < len(s) && s[i] == '*' {
		c.tag = "*"
		i++
	}
loop:
	for i < len(s) {
		switch s[i] {
		case '.', '#':
			kind := s[i]
			i++
			start := i
			for i < len(s) && isIdent(s[i]) {
				i++
			}
			name := s[start:i]
			if name == "" {
				return c, 0, fmt.Errorf("empty name after %q", kind)
			}
			if kind == '.' {
				c.classes = append(c.classes, name)
			} else {
				c.id = name
			}
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, 0, fmt.Errorf("unclosed [")
			}
			a, err := parseAttr(s[i+1 : i+end])
			if err != nil {
				return c, 0, err
			}
			c.attrs = append(c.attrs, a)
			i += end + 1
		default:
			break loop
		}
	}
	if i == 0 {
		return c, 0, fmt.Errorf("unexpected %q", s[0])
	}
	if i < len(s) && !isSpace(s[i]) && s[i] != '>' {
		return c, 0, fmt.Errorf("unexpected %q", s[i])
	}
	return c, i, nil
}

func parseAttr(inner string) (attrCond, error) {
	inner = strings.TrimSpace(inner)
	eq := strings.IndexByte(inner, '=')
	if eq < 0 {
		if !validIdent(inner) {
			return attrCond{}, fmt.Errorf("bad attribute %q", inner)
		}
		return attrCond{key: inner}, nil
	}
	a := attrCond{op: '=', key: inner[:eq]}
	if eq > 0 && strings.IndexByte("*^$~", inner[eq-1]) >= 0 {
		a.op = inner[eq-1]
		a.key = inner[:eq-1]
	}
	a.key = strings.TrimSpace(a.key)
	if !validIdent(a.key) {
		return attrCond{}, fmt.Errorf("bad attribute %q", inner)
	}
	a.val = strings.TrimSpace(inner[eq+1:])
	if len(a.val) >= 2 && (a.val[0] == '"' || a.val[0] == '\'') {
		if a.val[len(a.val)-1] != a.val[0] {
			return attrCond{}, fmt.Errorf("unterminated quote in %q", inner)
		}
		a.val = a.val[1 : len(a.val)-1]
	}
	return a, nil
}

func isIdent(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdent(s[i]) {
			return false
		}
	}
	return true
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
