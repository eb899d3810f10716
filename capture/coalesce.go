package capture

import (
	"context"
	"time"

	"github.com/hazyhaar/promptcap/prompt"
)

// DefaultSettle is how long a send must stay quiet before it is committed.
const DefaultSettle = 300 * time.Millisecond

// CoalesceConfig controls settling.
type CoalesceConfig struct {
	// Settle is the quiet window. Default: 300ms.
	Settle time.Duration
	// MaxPending flushes immediately when this many events wait. Default: 100.
	MaxPending int
}

func (c *CoalesceConfig) defaults() {
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.MaxPending <= 0 {
		c.MaxPending = 100
	}
}

// Coalescer holds send events until the stream has been quiet for the
// settle window. Within a window, an event for the same conversation whose
// normalized text equals a pending one replaces it: Enter and the send
// button often fire for the same message. Events with no text are never
// merged.
type Coalescer struct {
	cfg     CoalesceConfig
	pending []Event
	timer   *time.Timer
	timerCh <-chan time.Time
}

// NewCoalescer returns a Coalescer.
func NewCoalescer(cfg CoalesceConfig) *Coalescer {
	cfg.defaults()
	return &Coalescer{cfg: cfg}
}

// add buffers ev and restarts the window. It returns the events to commit
// when the buffer is full.
func (c *Coalescer) add(ev Event) []Event {
	if i := c.match(ev); i >= 0 {
		c.pending[i] = ev
	} else {
		c.pending = append(c.pending, ev)
	}
	if len(c.pending) >= c.cfg.MaxPending {
		return c.flush()
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.NewTimer(c.cfg.Settle)
	c.timerCh = c.timer.C
	return nil
}

func (c *Coalescer) match(ev Event) int {
	k := prompt.Normalize(eventText(ev))
	if k == "" {
		return -1
	}
	for i, p := range c.pending {
		if p.conversationKey() == ev.conversationKey() && prompt.Normalize(eventText(p)) == k {
			return i
		}
	}
	return -1
}

func (c *Coalescer) flush() []Event {
	out := c.pending
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.timerCh = nil
	}
	return out
}

// Run reads events from in and sends settled events to out. Pending events
// are flushed when in closes; they are dropped when ctx ends. Run closes
// out on return.
func (c *Coalescer) Run(ctx context.Context, in <-chan Event, out chan<- Event) {
	defer close(out)
	emit := func(evs []Event) bool {
		for _, ev := range evs {
			select {
			case out <- ev:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				emit(c.flush())
				return
			}
			ev.fill(time.Now())
			if !emit(c.add(ev)) {
				return
			}
		case <-c.timerCh:
			if !emit(c.flush()) {
				return
			}
		}
	}
}
