// Package compile turns a prompt list into one consolidated paragraph.
//
// A local heuristic summary is always computed first. The cloud path (the
// backend service, or a provider SDK called directly) runs behind the
// connectivity stack and upgrades the local answer when it succeeds in
// time; any cloud failure degrades to the local answer.
package compile

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ErrInvalidConfig marks a cloud attempt that could not be prepared: no
// usable backend, an unknown provider, a provider without credentials.
var ErrInvalidConfig = errors.New("compile: invalid configuration")

// ErrEmptySummary is returned when a cloud call succeeds with no text.
var ErrEmptySummary = errors.New("compile: empty summary")

// Accepted option values. The first of each list is the default.
var (
	Formats = []string{"paragraph", "bullets", "numbered"}
	Tones   = []string{"neutral", "formal", "casual", "technical"}
	Modes   = []string{"summary", "detailed"}
)

// Options tune one compilation.
type Options struct {
	Format         string `json:"format,omitempty"`
	Tone           string `json:"tone,omitempty"`
	IncludeAI      bool   `json:"includeAI,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	UserID         string `json:"userId,omitempty"`
	UserEmail      string `json:"userEmail,omitempty"`
	Platform       string `json:"platform,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// normalize replaces unknown format, tone and mode values with their
// defaults and logs each replacement.
func (o Options) normalize(logger *slog.Logger) Options {
	fix := func(field, v string, allowed []string) string {
		if v == "" {
			return allowed[0]
		}
		if !slices.Contains(allowed, v) {
			logger.Warn("compile: invalid option, using default", "option", field, "value", v, "default", allowed[0])
			return allowed[0]
		}
		return v
	}
	o.Format = fix("format", o.Format, Formats)
	o.Tone = fix("tone", o.Tone, Tones)
	o.Mode = fix("mode", o.Mode, Modes)
	return o
}

// RequestOptions is the options object of the backend wire format.
type RequestOptions struct {
	Format    string `json:"format"`
	Tone      string `json:"tone"`
	IncludeAI bool   `json:"includeAI"`
	Mode      string `json:"mode"`
}

// Request is the body POSTed to the compile backend.
type Request struct {
	Content        string         `json:"content"`
	Platform       string         `json:"platform"`
	AdditionalInfo string         `json:"additionalInfo"`
	Provider       string         `json:"provider"`
	Model          string         `json:"model"`
	APIKey         string         `json:"apiKey,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	UserEmail      string         `json:"userEmail,omitempty"`
	Options        RequestOptions `json:"options"`
}

// Response is a successful backend reply.
type Response struct {
	Summary  string `json:"summary"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Cloud is one remote compiler.
type Cloud interface {
	Name() string
	Compile(ctx context.Context, req Request) (Response, error)
}

// Direct is a provider SDK client the pipeline can call without the
// backend. WithAPIKey returns a client for a caller-supplied key that
// shares the receiver's breaker.
type Direct interface {
	Cloud
	WithAPIKey(key string) Direct
	HasKey() bool
}
