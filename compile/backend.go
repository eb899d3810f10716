package compile

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/promptcap/connectivity"
)

// Backend calls the compile service through a resilient fetcher.
type Backend struct {
	fetch *connectivity.Fetcher
}

// NewBackend returns a Backend posting to f's endpoint.
func NewBackend(f *connectivity.Fetcher) *Backend {
	return &Backend{fetch: f}
}

// Name implements Cloud.
func (b *Backend) Name() string { return "backend" }

// Compile posts req. Non-2xx replies surface as *connectivity.StatusError
// carrying the server's error message.
func (b *Backend) Compile(ctx context.Context, req Request) (Response, error) {
	var resp Response
	if err := b.fetch.PostJSON(ctx, req, &resp); err != nil {
		return Response{}, fmt.Errorf("compile: backend: %w", err)
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return Response{}, ErrEmptySummary
	}
	return resp, nil
}

// legacyRequest is the older compile endpoint's body: the prompt list
// instead of pre-joined content, flat options.
type legacyRequest struct {
	Prompts  []string `json:"prompts"`
	Platform string   `json:"platform"`
	Format   string   `json:"format"`
	Tone     string   `json:"tone"`
	UserID   string   `json:"userId,omitempty"`
}

type legacyResponse struct {
	Summary string `json:"summary"`
	Result  string `json:"result"`
	Model   string `json:"model"`
}

// Legacy calls the older compile endpoint. It is the last cloud attempt,
// used when the primary request cannot be prepared.
type Legacy struct {
	fetch *connectivity.Fetcher
}

// NewLegacy returns a Legacy client posting to f's endpoint.
func NewLegacy(f *connectivity.Fetcher) *Legacy {
	return &Legacy{fetch: f}
}

// Name implements Cloud.
func (l *Legacy) Name() string { return "legacy" }

// Compile implements Cloud. The prompt list is recovered from req.Content,
// one prompt per paragraph.
func (l *Legacy) Compile(ctx context.Context, req Request) (Response, error) {
	body := legacyRequest{
		Prompts:  splitContent(req.Content),
		Platform: req.Platform,
		Format:   req.Options.Format,
		Tone:     req.Options.Tone,
		UserID:   req.UserID,
	}
	var resp legacyResponse
	if err := l.fetch.PostJSON(ctx, body, &resp); err != nil {
		return Response{}, fmt.Errorf("compile: legacy: %w", err)
	}
	summary := resp.Summary
	if summary == "" {
		summary = resp.Result
	}
	if strings.TrimSpace(summary) == "" {
		return Response{}, ErrEmptySummary
	}
	return Response{Summary: summary, Provider: "legacy", Model: resp.Model}, nil
}

const contentSep = "\n\n"

func joinContent(contents []string) string {
	return strings.Join(contents, contentSep)
}

func splitContent(content string) []string {
	var out []string
	for _, s := range strings.Split(content, contentSep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
