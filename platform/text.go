package platform

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipText lists elements whose text never belongs to a prompt.
var skipText = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Button:   true,
	atom.Template: true,
}

var blockish = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.Pre: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Tr: true,
	atom.Blockquote: true,
}

// labels are screen-reader captions some platforms put in their own
// element before the turn, keyed by normalized text.
var labels = map[string]bool{"you said:": true, "you said": true}

// label reports an element holding nothing but a turn caption.
func label(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return labels[strings.ToLower(CleanText(b.String()))]
}

// NodeText returns the visible text under n with whitespace collapsed.
func NodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipText[n.DataAtom] || hidden(n) || label(n) {
				return
			}
			if blockish[n.DataAtom] {
				b.WriteByte(' ')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return CleanText(b.String())
}

// hidden reports screen-reader-only and aria-hidden wrappers.
func hidden(n *html.Node) bool {
	if attr(n, "aria-hidden") == "true" {
		return true
	}
	_, ok := lookupAttr(n, "hidden")
	return ok
}

var spaceRun = regexp.MustCompile(`\s+`)

// CleanText removes zero-width characters, collapses whitespace and trims.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

var markdown = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// RichText renders n as markdown so fenced code and lists in a user turn
// survive. It falls back to NodeText when conversion yields nothing.
func RichText(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (skipText[c.DataAtom] || hidden(c) || label(c)) {
			continue
		}
		if err := html.Render(&buf, c); err != nil {
			return NodeText(n)
		}
	}
	md, err := markdown.ConvertString(buf.String())
	if err != nil || strings.TrimSpace(md) == "" {
		return NodeText(n)
	}
	return strings.TrimSpace(strings.ReplaceAll(md, "\u200b", ""))
}
