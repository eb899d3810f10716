// Package scroll forces a lazily rendered conversation to materialize its
// full history before it is scraped.
package scroll

import (
	"time"

	"github.com/hazyhaar/promptcap/platform"
)

// Config tunes one platform's scroll pass.
type Config struct {
	TopAttempts     int           // ascend steps at most
	BottomAttempts  int           // descend steps at most
	WaitPerScroll   time.Duration // settle time after each step
	StabilityChecks int           // consecutive unchanged heights that end the ascent
	ParallelWait    time.Duration // settle time at each sampler position
}

// Speed selects the fast or slow column of the table.
type Speed string

const (
	Fast Speed = "fast"
	Slow Speed = "slow"
)

var fastTable = map[platform.Platform]Config{
	platform.ChatGPT:    {TopAttempts: 20, BottomAttempts: 5, WaitPerScroll: 500 * time.Millisecond, StabilityChecks: 3, ParallelWait: 300 * time.Millisecond},
	platform.Claude:     {TopAttempts: 20, BottomAttempts: 5, WaitPerScroll: 600 * time.Millisecond, StabilityChecks: 3, ParallelWait: 300 * time.Millisecond},
	platform.Gemini:     {TopAttempts: 25, BottomAttempts: 6, WaitPerScroll: 700 * time.Millisecond, StabilityChecks: 4, ParallelWait: 400 * time.Millisecond},
	platform.Perplexity: {TopAttempts: 10, BottomAttempts: 5, WaitPerScroll: 500 * time.Millisecond, StabilityChecks: 2, ParallelWait: 400 * time.Millisecond},
	platform.DeepSeek:   {TopAttempts: 15, BottomAttempts: 5, WaitPerScroll: 500 * time.Millisecond, StabilityChecks: 3, ParallelWait: 300 * time.Millisecond},
	platform.Lovable:    {TopAttempts: 10, BottomAttempts: 3, WaitPerScroll: 400 * time.Millisecond, StabilityChecks: 2, ParallelWait: 250 * time.Millisecond},
	platform.Bolt:       {TopAttempts: 10, BottomAttempts: 3, WaitPerScroll: 400 * time.Millisecond, StabilityChecks: 2, ParallelWait: 250 * time.Millisecond},
	platform.Cursor:     {TopAttempts: 10, BottomAttempts: 3, WaitPerScroll: 400 * time.Millisecond, StabilityChecks: 2, ParallelWait: 250 * time.Millisecond},
	platform.MetaAI:     {TopAttempts: 15, BottomAttempts: 5, WaitPerScroll: 500 * time.Millisecond, StabilityChecks: 3, ParallelWait: 300 * time.Millisecond},
}

var fallback = Config{TopAttempts: 12, BottomAttempts: 4, WaitPerScroll: 500 * time.Millisecond, StabilityChecks: 3, ParallelWait: 300 * time.Millisecond}

// ConfigFor returns the tuning for p. Slow doubles attempts and waits, for
// long conversations on slow networks. Unknown platforms get the generic row.
func ConfigFor(p platform.Platform, speed Speed) Config {
	c, ok := fastTable[p]
	if !ok {
		c = fallback
	}
	if speed == Slow {
		c.TopAttempts *= 2
		c.BottomAttempts *= 2
		c.WaitPerScroll *= 2
		c.ParallelWait *= 2
	}
	return c
}
