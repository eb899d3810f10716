// Package platform knows the supported chat web applications: how to
// recognise each one from its URL, which DOM nodes hold user-authored
// turns, and where the conversation scrolls.
//
// Adapters are plain strategy records, not an inheritance tree. Detect walks
// them in a fixed priority order and the first match wins; the generic
// adapter is always last.
package platform

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Platform identifies a supported web application.
type Platform string

const (
	ChatGPT    Platform = "chatgpt"
	Claude     Platform = "claude"
	Gemini     Platform = "gemini"
	Perplexity Platform = "perplexity"
	DeepSeek   Platform = "deepseek"
	Lovable    Platform = "lovable"
	Bolt       Platform = "bolt"
	Cursor     Platform = "cursor"
	MetaAI     Platform = "meta"
	Generic    Platform = "generic"
)

// Adapter is the strategy record for one platform.
type Adapter struct {
	Platform Platform
	Name     string

	// Hosts are hostnames, matched exactly or as a dot-suffix.
	// An empty list matches any http(s) host.
	Hosts []string

	// Prompts select nodes that contain only user-authored text.
	Prompts []string
	// Exclude drops candidates that are, or sit inside, composer UI or
	// assistant turns.
	Exclude []string
	// Scroll are tried in order before the largest-scrollable fallback.
	Scroll []string

	// Conversation extracts the conversation id from the URL path.
	Conversation *regexp.Regexp

	// RichText renders turns as markdown instead of flat text.
	RichText bool
	// MultiSample marks platforms whose virtualized list drops
	// mid-conversation turns even after a full scroll pass.
	MultiSample bool
}

// Detect reports whether rawURL belongs to the adapter's platform.
func (a *Adapter) Detect(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if len(a.Hosts) == 0 {
		return true
	}
	for _, h := range a.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// ConversationID returns the conversation id for rawURL, or "" when the
// URL carries none.
func (a *Adapter) ConversationID(rawURL string) string {
	if a.Conversation == nil {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	m := a.Conversation.FindStringSubmatch(u.Path)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// StoreKey is the persisted-capture key for a conversation. Without an id
// it falls back to the platform and the calendar day of at.
func StoreKey(p Platform, conversationID string, at time.Time) string {
	if conversationID == "" {
		return string(p) + ":" + at.UTC().Format("2006-01-02")
	}
	return string(p) + ":" + conversationID
}

// Detect returns the first adapter in priority order that matches rawURL,
// or nil when the page is unsupported.
func Detect(rawURL string) *Adapter {
	for _, a := range Registry() {
		if a.Detect(rawURL) {
			return a
		}
	}
	return nil
}

// Lookup returns the adapter for p.
func Lookup(p Platform) (*Adapter, bool) {
	for _, a := range Registry() {
		if a.Platform == p {
			return a, true
		}
	}
	return nil, false
}

// Name returns the display name of the platform serving rawURL and false
// when the page is unsupported.
func Name(rawURL string) (string, bool) {
	if a := Detect(rawURL); a != nil {
		return a.Name, true
	}
	return "", false
}

// ContainerFinder is the live-page capability ScrollContainer needs.
type ContainerFinder interface {
	// Scrollable reports whether sel matches an element that can scroll.
	Scrollable(ctx context.Context, sel string) (bool, error)
	// LargestScrollable returns a selector for the div with the largest
	// scrollHeight whose computed overflow-y is not hidden, or "".
	LargestScrollable(ctx context.Context) (string, error)
}

// ScrollContainer returns a selector for the element holding the
// conversation, or "" when there is none. Selector errors skip to the next
// candidate.
func (a *Adapter) ScrollContainer(ctx context.Context, page ContainerFinder) string {
	for _, sel := range a.Scroll {
		if _, err := Compile(sel); err != nil {
			continue
		}
		ok, err := page.Scrollable(ctx, sel)
		if err == nil && ok {
			return sel
		}
	}
	sel, err := page.LargestScrollable(ctx)
	if err != nil {
		return ""
	}
	return sel
}
