package capture

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/promptcap/platform"
)

type fakeSubscriber struct {
	subject string
	handler func(string, []byte)
	ready   chan struct{}
}

func (f *fakeSubscriber) Subscribe(subject string, h func(string, []byte)) error {
	f.subject, f.handler = subject, h
	close(f.ready)
	return nil
}

func TestPump_NATSSourceIntoStore(t *testing.T) {
	s, _ := newTestStore(t)
	sub := &fakeSubscriber{ready: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Pump(ctx, s, CoalesceConfig{Settle: 10 * time.Millisecond}, nil, NewNATSSource(sub, "", nil))
		close(done)
	}()

	<-sub.ready
	if sub.subject != "promptcap.capture" {
		t.Fatalf("subject = %q", sub.subject)
	}
	sub.handler(sub.subject, []byte(`{"text":"summarize this thread","url":"https://chatgpt.com/c/abc123","at":"2026-03-01T12:00:00Z"}`))
	sub.handler(sub.subject, []byte(`{"text":"ping user@example.com","url":"https://chatgpt.com/c/abc123","at":"2026-03-01T12:00:01Z"}`))
	sub.handler(sub.subject, []byte(`not json`))

	deadline := time.After(5 * time.Second)
	for len(s.Live(platform.ChatGPT, "abc123", t0)) == 0 {
		select {
		case <-deadline:
			t.Fatal("prompt never captured")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	live := s.Live(platform.ChatGPT, "abc123", t0)
	if len(live) != 1 || live[0].Content != "summarize this thread" {
		t.Fatalf("Live: %+v", live)
	}
}
