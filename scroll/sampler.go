package scroll

import (
	"context"
	"time"

	"github.com/hazyhaar/promptcap/prompt"
)

// SamplePositions are the scroll fractions the sampler visits.
var SamplePositions = []float64{0, 0.25, 0.5, 0.75, 1}

// Sampler scrapes at several scroll positions and unions the results, for
// virtualized lists that unmount turns outside the viewport.
type Sampler struct {
	wait  time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSampler returns a sampler that settles for cfg.ParallelWait at each
// position.
func NewSampler(cfg Config, opts ...LoaderOption) *Sampler {
	l := NewLoader(cfg, opts...)
	return &Sampler{wait: cfg.ParallelWait, sleep: l.sleep}
}

// Sample visits every SamplePositions fraction of the container height,
// calls scrape at each, and returns the deduplicated union in first-seen
// order with fresh sequential indices. A failed scrape at one position is
// skipped.
func (sm *Sampler) Sample(ctx context.Context, s Scroller, container string, scrape func(ctx context.Context) ([]prompt.Prompt, error)) ([]prompt.Prompt, error) {
	height := 0
	if container != "" {
		h, err := s.ScrollHeight(ctx, container)
		if err != nil {
			return nil, err
		}
		height = h
	}

	var union []prompt.Prompt
	for _, frac := range SamplePositions {
		if container != "" {
			if err := s.ScrollTo(ctx, container, int(frac*float64(height))); err != nil {
				continue
			}
			if err := sm.sleep(ctx, sm.wait); err != nil {
				return nil, err
			}
		}
		ps, err := scrape(ctx)
		if err != nil {
			continue
		}
		union = append(union, ps...)
		if container == "" {
			break
		}
	}
	return prompt.Reindex(prompt.Dedup(union)), nil
}
