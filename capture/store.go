package capture

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/promptcap/idgen"
	"github.com/hazyhaar/promptcap/kvstore"
	"github.com/hazyhaar/promptcap/platform"
	"github.com/hazyhaar/promptcap/prompt"
)

// ErrDuplicate rejects a captured prompt whose normalized content is
// already recorded for the conversation.
var ErrDuplicate = errors.New("capture: duplicate prompt")

// ErrEmpty rejects an event with no text after sanitizing.
var ErrEmpty = errors.New("capture: empty prompt")

// Namespace is the kvstore namespace holding persisted captures. Keys are
// platform.StoreKey values.
const Namespace = "captures"

// DefaultLimit bounds each conversation's persisted list; the oldest
// entries are dropped first.
const DefaultLimit = 500

// Store keeps the live capture list for this session and mirrors every
// accepted prompt into the persisted namespace.
type Store struct {
	persisted kvstore.Store
	newID     idgen.Generator
	now       func() time.Time
	limit     int
	logger    *slog.Logger

	mu   sync.Mutex
	live map[string][]prompt.Prompt
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLimit sets the per-conversation persisted cap.
func WithLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithIDGenerator sets the prompt id generator.
func WithIDGenerator(g idgen.Generator) StoreOption {
	return func(s *Store) { s.newID = g }
}

// WithStoreClock sets the clock used for events without a timestamp.
func WithStoreClock(fn func() time.Time) StoreOption {
	return func(s *Store) { s.now = fn }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a Store persisting into persisted. A nil persisted store
// keeps captures in memory only.
func NewStore(persisted kvstore.Store, opts ...StoreOption) *Store {
	s := &Store{
		persisted: persisted,
		newID:     idgen.Capture,
		now:       time.Now,
		limit:     DefaultLimit,
		logger:    slog.Default(),
		live:      make(map[string][]prompt.Prompt),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Capture validates ev and records it. Events matching the privacy guard
// return an error wrapping ErrSensitive and are never stored; a repeat of
// a prompt already captured this session or persisted for the conversation
// returns ErrDuplicate.
func (s *Store) Capture(ctx context.Context, ev Event) (prompt.Prompt, error) {
	ev.fill(s.now())
	text := eventText(ev)
	if text == "" {
		return prompt.Prompt{}, ErrEmpty
	}
	if rule, ok := Sensitive(text); ok {
		s.logger.Info("capture: prompt rejected by privacy guard", "platform", ev.Platform, "rule", rule)
		return prompt.Prompt{}, fmt.Errorf("%w: %s", ErrSensitive, rule)
	}

	key := ev.conversationKey()
	p := prompt.Prompt{
		ID:             s.newID(),
		Content:        text,
		Timestamp:      prompt.Millis(ev.At),
		ConversationID: ev.ConversationID,
		Platform:       string(ev.Platform),
		Source:         prompt.SourceKeylog,
	}

	if s.seen(key, p.Key()) {
		return prompt.Prompt{}, ErrDuplicate
	}
	stored, loadErr := s.load(ctx, key)
	if containsKey(stored, p.Key()) {
		return prompt.Prompt{}, ErrDuplicate
	}

	s.mu.Lock()
	live := s.live[key]
	if containsKey(live, p.Key()) {
		s.mu.Unlock()
		return prompt.Prompt{}, ErrDuplicate
	}
	p.Index = len(live)
	s.live[key] = append(live, p)
	s.mu.Unlock()

	switch {
	case loadErr != nil:
		// Writing without the stored list would overwrite it.
		s.logger.Warn("capture: persisted list unreadable, not persisting", "key", key, "error", loadErr)
	default:
		if err := s.persist(ctx, key, stored, p); err != nil {
			// The live copy stays; the next reload just won't see this prompt.
			s.logger.Warn("capture: persist failed", "key", key, "error", err)
		}
	}
	s.logger.Debug("capture: prompt recorded", "platform", ev.Platform, "conversation_id", ev.ConversationID)
	return p, nil
}

var strict = bluemonday.StrictPolicy()

// eventText returns the exact text of ev, or its HTML stripped of markup
// when Text is empty. Inner whitespace is kept.
func eventText(ev Event) string {
	raw := ev.Text
	if raw == "" && ev.HTML != "" {
		raw = html.UnescapeString(strict.Sanitize(ev.HTML))
	}
	return strings.TrimSpace(zeroWidth.Replace(raw))
}

var zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")

func (s *Store) seen(key, promptKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsKey(s.live[key], promptKey)
}

func (s *Store) load(ctx context.Context, key string) ([]prompt.Prompt, error) {
	if s.persisted == nil {
		return nil, nil
	}
	var list []prompt.Prompt
	if _, err := kvstore.GetJSON(ctx, s.persisted, key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) persist(ctx context.Context, key string, list []prompt.Prompt, p prompt.Prompt) error {
	if s.persisted == nil {
		return nil
	}
	p.Source = prompt.SourcePersisted
	list = append(list, p)
	if over := len(list) - s.limit; over > 0 {
		list = list[over:]
	}
	return kvstore.SetJSON(ctx, s.persisted, key, prompt.Reindex(list))
}

// Live returns this session's captures for a conversation, oldest first.
func (s *Store) Live(p platform.Platform, conversationID string, at time.Time) []prompt.Prompt {
	key := platform.StoreKey(p, conversationID, at)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]prompt.Prompt(nil), s.live[key]...)
}

// Persisted returns the stored captures for a conversation, oldest first.
func (s *Store) Persisted(ctx context.Context, p platform.Platform, conversationID string, at time.Time) ([]prompt.Prompt, error) {
	if s.persisted == nil {
		return nil, nil
	}
	key := platform.StoreKey(p, conversationID, at)
	list, err := s.load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("capture: load %s: %w", key, err)
	}
	return list, nil
}

// Forget drops both the live and persisted captures of a conversation.
func (s *Store) Forget(ctx context.Context, p platform.Platform, conversationID string, at time.Time) error {
	key := platform.StoreKey(p, conversationID, at)
	s.mu.Lock()
	delete(s.live, key)
	s.mu.Unlock()
	if s.persisted == nil {
		return nil
	}
	return s.persisted.Remove(ctx, key)
}

// Consume records every event from in until it closes or ctx ends.
// Rejections are logged and skipped.
func (s *Store) Consume(ctx context.Context, in <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if _, err := s.Capture(ctx, ev); err != nil && !errors.Is(err, ErrSensitive) {
				s.logger.Debug("capture: event skipped", "error", err)
			}
		}
	}
}

func containsKey(list []prompt.Prompt, key string) bool {
	for _, p := range list {
		if p.Key() == key {
			return true
		}
	}
	return false
}
