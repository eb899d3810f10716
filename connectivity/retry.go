package connectivity

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy describes how RetryWithBackoff spaces its attempts.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // wait after the first failure
	Multiplier   float64       // growth factor between waits
	MaxDelay     time.Duration // cap on any single wait

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy is 3 attempts, 1s initial delay doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
	}
}

func (p *RetryPolicy) defaults() {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
}

// Delay returns the wait after the given failed attempt (1-based):
// min(InitialDelay * Multiplier^(attempt-1), MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p.defaults()
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable
// error, the context ends, or MaxAttempts is exhausted. The last error is
// returned unchanged.
func RetryWithBackoff(ctx context.Context, p RetryPolicy, logger *slog.Logger, fn func(ctx context.Context) error) error {
	p.defaults()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !Retryable(err) || attempt == p.MaxAttempts {
			return lastErr
		}

		wait := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if logger != nil {
			logger.WarnContext(ctx, "retrying call",
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(wait):
		}
	}
	return lastErr
}

// WithRetry returns a HandlerMiddleware that applies RetryWithBackoff to
// every call.
func WithRetry(p RetryPolicy, logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var resp []byte
			err := RetryWithBackoff(ctx, p, logger, func(ctx context.Context) error {
				var err error
				resp, err = next(ctx, payload)
				return err
			})
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
	}
}
