package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/promptcap/bus"
)

// Subscriber is the part of bus.Client a NATSSource needs.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// NATSSource emits events published as JSON on a subject.
type NATSSource struct {
	sub     Subscriber
	subject string
	logger  *slog.Logger
}

// NewNATSSource returns a source on subject, bus.SubjectCapture when empty.
func NewNATSSource(sub Subscriber, subject string, logger *slog.Logger) *NATSSource {
	if subject == "" {
		subject = bus.SubjectCapture
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{sub: sub, subject: subject, logger: logger}
}

// Run subscribes and blocks until ctx ends. Messages arriving after ctx
// ends are dropped.
func (s *NATSSource) Run(ctx context.Context, out chan<- Event) error {
	err := s.sub.Subscribe(s.subject, func(subject string, data []byte) {
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("capture: bad nats payload", "subject", subject, "error", err)
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	<-ctx.Done()
	return nil
}
