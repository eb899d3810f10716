package scroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scroller drives the scroll position of a container on a live page.
// The container is a selector returned by platform.Adapter.ScrollContainer.
type Scroller interface {
	ScrollHeight(ctx context.Context, container string) (int, error)
	ScrollTo(ctx context.Context, container string, y int) error
}

// Stats reports what a Load pass did.
type Stats struct {
	DescendSteps int
	AscendSteps  int
	FinalHeight  int
	Skipped      bool // no container
}

// Loader runs the three scroll phases. Phases are strictly sequential: each
// one depends on the page state the previous one left behind.
type Loader struct {
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSleep replaces the settle wait (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) LoaderOption {
	return func(l *Loader) { l.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader returns a loader using cfg.
func NewLoader(cfg Config, opts ...LoaderOption) *Loader {
	l := &Loader{cfg: cfg, logger: slog.Default(), sleep: sleepCtx}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load descends until the height stops growing, ascends until the height
// holds for StabilityChecks readings in a row, then scrolls back to the
// bottom. An empty container makes Load a no-op.
func (l *Loader) Load(ctx context.Context, s Scroller, container string) (Stats, error) {
	var st Stats
	if container == "" {
		st.Skipped = true
		return st, nil
	}

	prev, err := s.ScrollHeight(ctx, container)
	if err != nil {
		return st, fmt.Errorf("scroll: read height: %w", err)
	}

	// Descend: one stable reading is enough to know we reached "now".
	for i := 0; i < l.cfg.BottomAttempts; i++ {
		h, err := l.step(ctx, s, container, prev)
		if err != nil {
			return st, err
		}
		st.DescendSteps++
		if h == prev {
			break
		}
		prev = h
	}

	// Ascend: lazy loads triggered by reaching the top can land late, so a
	// single unchanged reading is not trusted.
	stable := 0
	for i := 0; i < l.cfg.TopAttempts; i++ {
		h, err := l.step(ctx, s, container, 0)
		if err != nil {
			return st, err
		}
		st.AscendSteps++
		if h == prev {
			stable++
			if stable >= l.cfg.StabilityChecks {
				break
			}
			continue
		}
		stable = 0
		prev = h
	}

	// Re-descend so the freshest turns are rendered too.
	h, err := l.step(ctx, s, container, prev)
	if err != nil {
		return st, err
	}
	st.FinalHeight = h

	l.logger.DebugContext(ctx, "scroll: history loaded",
		"descend_steps", st.DescendSteps,
		"ascend_steps", st.AscendSteps,
		"height", st.FinalHeight)
	return st, nil
}

// step scrolls to y, waits, and returns the new scroll height.
func (l *Loader) step(ctx context.Context, s Scroller, container string, y int) (int, error) {
	if err := s.ScrollTo(ctx, container, y); err != nil {
		return 0, fmt.Errorf("scroll: scroll to %d: %w", y, err)
	}
	if err := l.sleep(ctx, l.cfg.WaitPerScroll); err != nil {
		return 0, err
	}
	h, err := s.ScrollHeight(ctx, container)
	if err != nil {
		return 0, fmt.Errorf("scroll: read height: %w", err)
	}
	return h, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
