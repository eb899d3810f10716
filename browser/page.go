package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"golang.org/x/net/html"
)

// ScrollMarker is the attribute LargestScrollable sets on the element it
// picks, so later calls can address it by selector.
const ScrollMarker = "data-promptcap-scroll"

// Page is one chat tab. It satisfies the document, scroller and container
// contracts the extraction pipeline depends on.
type Page struct {
	page   *rod.Page
	logger *slog.Logger
}

// Rod returns the underlying page.
func (p *Page) Rod() *rod.Page { return p.page }

// URL returns the tab's current URL, or "" when the target is gone.
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title returns document.title.
func (p *Page) Title(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("browser: title: %w", err)
	}
	return res.Value.Str(), nil
}

// Document serialises the live DOM and parses it.
func (p *Page) Document(ctx context.Context) (*html.Node, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(res.Value.Str()))
	if err != nil {
		return nil, fmt.Errorf("browser: parse DOM: %w", err)
	}
	return doc, nil
}

// Element lookup shared by the scroll scripts: an empty selector means the
// document's scrolling element.
const pickElement = `const el = sel ? document.querySelector(sel) : (document.scrollingElement || document.documentElement);`

// ScrollHeight returns the container's scrollHeight, 0 when it is absent.
func (p *Page) ScrollHeight(ctx context.Context, container string) (int, error) {
	res, err := p.page.Context(ctx).Eval(`(sel) => {
		`+pickElement+`
		return el ? el.scrollHeight : 0;
	}`, container)
	if err != nil {
		return 0, fmt.Errorf("browser: scrollHeight: %w", err)
	}
	return res.Value.Int(), nil
}

// ScrollTo sets the container's scrollTop.
func (p *Page) ScrollTo(ctx context.Context, container string, y int) error {
	_, err := p.page.Context(ctx).Eval(`(sel, y) => {
		`+pickElement+`
		if (el) el.scrollTop = y;
	}`, container, y)
	if err != nil {
		return fmt.Errorf("browser: scrollTo: %w", err)
	}
	return nil
}

// Scrollable reports whether sel matches an element whose content
// overflows it.
func (p *Page) Scrollable(ctx context.Context, sel string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(`(sel) => {
		let el;
		try { el = document.querySelector(sel); } catch (e) { return false; }
		return !!el && el.scrollHeight > el.clientHeight;
	}`, sel)
	if err != nil {
		return false, fmt.Errorf("browser: scrollable %s: %w", sel, err)
	}
	return res.Value.Bool(), nil
}

// LargestScrollable marks the div with the largest scrollHeight whose
// computed overflow-y is not hidden and returns a selector for it.
func (p *Page) LargestScrollable(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`(attr) => {
		let best = null, bestH = 0;
		for (const el of document.querySelectorAll("div")) {
			if (getComputedStyle(el).overflowY === "hidden") continue;
			if (el.scrollHeight > bestH) { best = el; bestH = el.scrollHeight; }
		}
		for (const old of document.querySelectorAll("[" + attr + "]")) old.removeAttribute(attr);
		if (!best) return "";
		best.setAttribute(attr, "1");
		return "[" + attr + "=\"1\"]";
	}`, ScrollMarker)
	if err != nil {
		return "", fmt.Errorf("browser: largest scrollable: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (p *Page) Close() error {
	if p.page != nil {
		return p.page.Close()
	}
	return nil
}

func sameHost(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return ua.Host != "" && strings.EqualFold(ua.Host, ub.Host)
}
