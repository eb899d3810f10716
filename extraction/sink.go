package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hazyhaar/promptcap/bus"
	"github.com/hazyhaar/promptcap/connectivity"
	"github.com/hazyhaar/promptcap/prompt"
)

// Sink receives every finished extraction.
type Sink interface {
	Deliver(ctx context.Context, res *prompt.ExtractionResult) error
}

// SinkFunc adapts a function to Sink; it is the in-process callback path.
type SinkFunc func(ctx context.Context, res *prompt.ExtractionResult) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, res *prompt.ExtractionResult) error { return f(ctx, res) }

// Router fans results out to all sinks. One sink error does not block the
// others; errors are logged and the first is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Deliver implements Sink.
func (r *Router) Deliver(ctx context.Context, res *prompt.ExtractionResult) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Deliver(ctx, res); err != nil {
			r.logger.Warn("extraction: sink delivery failed", "id", res.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Publisher is the part of bus.Client a NATSSink needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// NATSSink publishes results as JSON on a subject.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink returns a sink on subject, bus.SubjectExtraction when empty.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = bus.SubjectExtraction
	}
	return &NATSSink{pub: pub, subject: subject}
}

// Deliver implements Sink.
func (s *NATSSink) Deliver(_ context.Context, res *prompt.ExtractionResult) error {
	if err := s.pub.Publish(s.subject, res); err != nil {
		return fmt.Errorf("extraction: publish %s: %w", s.subject, err)
	}
	return nil
}

// WebhookSink POSTs results through a resilient fetcher.
type WebhookSink struct {
	fetch *connectivity.Fetcher
}

// NewWebhookSink returns a sink posting to f's endpoint.
func NewWebhookSink(f *connectivity.Fetcher) *WebhookSink {
	return &WebhookSink{fetch: f}
}

// Deliver implements Sink.
func (w *WebhookSink) Deliver(ctx context.Context, res *prompt.ExtractionResult) error {
	if err := w.fetch.PostJSON(ctx, res, nil); err != nil {
		return fmt.Errorf("extraction: webhook: %w", err)
	}
	return nil
}

// WriterSink writes one JSON document per result.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer, indent bool) *WriterSink {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return &WriterSink{enc: enc}
}

// Deliver implements Sink.
func (w *WriterSink) Deliver(_ context.Context, res *prompt.ExtractionResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(res)
}
