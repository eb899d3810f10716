package capture

import (
	"context"
	"log/slog"
	"sync"
)

// Pump runs every source into one settled stream recorded by store. It
// blocks until ctx ends and every source has returned. Source errors are
// logged; a failed source does not stop the others.
func Pump(ctx context.Context, store *Store, cfg CoalesceConfig, logger *slog.Logger, sources ...Source) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := make(chan Event, 64)
	settled := make(chan Event, 64)

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if err := src.Run(ctx, raw); err != nil {
				logger.Warn("capture: source stopped", "error", err)
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(raw)
	}()

	go NewCoalescer(cfg).Run(ctx, raw, settled)
	store.Consume(ctx, settled)
	wg.Wait()
}
