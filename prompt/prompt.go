// Package prompt defines the records that flow through the capture and
// compilation pipeline: captured prompts, extraction snapshots and compiled
// summaries, plus the normalization that gives a prompt its identity.
package prompt

import (
	"fmt"
	"time"
)

// Source tags where a prompt came from.
type Source string

const (
	SourceDOM       Source = "dom"       // scraped from the rendered conversation
	SourceKeylog    Source = "keylog"    // captured at send time in this session
	SourcePersisted Source = "persisted" // captured earlier and restored from the store
)

// Mode selects what Extract returns.
type Mode string

const (
	ModeCapture Mode = "capture" // raw deduplicated prompts
	ModeCompile Mode = "compile" // prompts plus a compiled summary
)

// Preference selects which prompt sources an extraction may use.
type Preference string

const (
	PreferAuto   Preference = "auto"
	PreferDOM    Preference = "dom"
	PreferKeylog Preference = "keylog"
)

// ParseMode validates a mode string. Empty means capture.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCapture:
		return ModeCapture, nil
	case ModeCompile:
		return ModeCompile, nil
	}
	return "", fmt.Errorf("prompt: unknown mode %q", s)
}

// ParsePreference validates a source preference string. Empty means auto.
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case "", PreferAuto:
		return PreferAuto, nil
	case PreferDOM:
		return PreferDOM, nil
	case PreferKeylog:
		return PreferKeylog, nil
	}
	return "", fmt.Errorf("prompt: unknown source %q", s)
}

// Prompt is one user-authored message. Its identity is Key(Content); Index
// and Timestamp never take part in deduplication.
type Prompt struct {
	ID             string `json:"id,omitempty"`
	Content        string `json:"content"`
	Index          int    `json:"index"`
	Timestamp      int64  `json:"timestamp,omitempty"` // epoch ms
	ConversationID string `json:"conversationId,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Source         Source `json:"source,omitempty"`
}

// Key returns the deduplication identity of the prompt.
func (p Prompt) Key() string { return Normalize(p.Content) }

// ExtractionResult is an immutable snapshot of one extraction. A new
// extraction always produces a new value.
type ExtractionResult struct {
	ID             string         `json:"id"`
	Platform       string         `json:"platform"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Prompts        []Prompt       `json:"prompts"`
	ExtractedAt    int64          `json:"extractedAt"` // epoch ms
	ConversationID string         `json:"conversationId"`
	Mode           Mode           `json:"mode"`
	Summary        *SummaryResult `json:"summary,omitempty"`
}

// Count records how many prompts went into and survived compilation.
type Count struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// SummaryResult is the output of compile mode.
type SummaryResult struct {
	Original    []Prompt `json:"original"`
	Summary     string   `json:"summary"`
	PromptCount Count    `json:"promptCount"`
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }
