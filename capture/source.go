// Package capture records prompts at the moment the user sends them.
//
// Send events arrive from a Source (the browser binding, a spool directory,
// a NATS subject), settle in a Coalescer, pass the privacy guard and
// capture-time dedup, and land in the live session list and the persisted
// store for their conversation.
package capture

import (
	"context"
	"time"

	"github.com/hazyhaar/promptcap/platform"
)

// Event is one raw send observed on a chat page.
type Event struct {
	Text           string            `json:"text"`
	HTML           string            `json:"html,omitempty"`
	Platform       platform.Platform `json:"platform"`
	ConversationID string            `json:"conversationId,omitempty"`
	URL            string            `json:"url,omitempty"`
	At             time.Time         `json:"at"`
}

// Source emits send events until ctx is cancelled or the source fails.
// Run must not close out.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, out chan<- Event) error

// Run calls f.
func (f SourceFunc) Run(ctx context.Context, out chan<- Event) error { return f(ctx, out) }

// fill completes an event from its URL when the producer left fields empty.
func (ev *Event) fill(now time.Time) {
	if ev.At.IsZero() {
		ev.At = now
	}
	if ev.URL == "" {
		return
	}
	a := platform.Detect(ev.URL)
	if a == nil {
		return
	}
	if ev.Platform == "" {
		ev.Platform = a.Platform
	}
	if ev.ConversationID == "" {
		ev.ConversationID = a.ConversationID(ev.URL)
	}
}

// conversationKey groups events of one conversation.
func (ev Event) conversationKey() string {
	return platform.StoreKey(ev.Platform, ev.ConversationID, ev.At)
}
