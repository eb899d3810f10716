package extraction

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrInProgress rejects an extraction started while another one on the
// same page is still running.
var ErrInProgress = errors.New("extraction: already in progress")

// DefaultGuardTimeout is how long a held guard blocks new extractions
// before it is considered stuck and taken over.
const DefaultGuardTimeout = 60 * time.Second

// Guard is a single in-flight flag. Concurrent callers are rejected, not
// queued.
type Guard struct {
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	held  bool
	since time.Time
	gen   uint64
}

// NewGuard returns a Guard. A zero timeout means DefaultGuardTimeout.
func NewGuard(timeout time.Duration, logger *slog.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultGuardTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{timeout: timeout, now: time.Now, logger: logger}
}

// Acquire takes the flag. It fails with ErrInProgress while another holder
// is younger than the timeout. The returned release is idempotent and
// does nothing once a newer holder has taken over.
func (g *Guard) Acquire() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.held {
		if now.Sub(g.since) < g.timeout {
			return nil, ErrInProgress
		}
		g.logger.Warn("extraction: guard timed out, taking over", "held_ms", now.Sub(g.since).Milliseconds())
	}
	g.held = true
	g.since = now
	g.gen++
	gen := g.gen

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.gen == gen {
				g.held = false
			}
		})
	}, nil
}

// Busy reports whether an extraction holds the flag.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held && g.now().Sub(g.since) < g.timeout
}
