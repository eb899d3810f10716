package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule runs Purge every ten minutes.
const DefaultPurgeSchedule = "@every 10m"

// Janitor purges expired entries of one or more caches on a cron schedule.
type Janitor struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor schedules Purge on every cache. An empty schedule means
// DefaultPurgeSchedule.
func NewJanitor(schedule string, logger *slog.Logger, caches ...*Cache) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{cron: cron.New(), logger: logger}
	_, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		for _, c := range caches {
			n, err := c.Purge(ctx)
			if err != nil {
				logger.Warn("cache: purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("cache: purged expired entries", "count", n)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache: schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins running the schedule in its own goroutine.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
