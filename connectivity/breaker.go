package connectivity

import (
	"context"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Normal operation, calls pass through.
	BreakerOpen                         // Calls rejected immediately.
	BreakerHalfOpen                     // One trial call at a time.
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

// CircuitBreaker guards one upstream dependency for the life of the
// process. Transitions are the only mutation path; all of them hold mu.
type CircuitBreaker struct {
	mu           sync.Mutex
	service      string
	state        BreakerState
	failures     int
	successes    int
	probing      bool          // a half-open trial is in flight
	threshold    int           // failures before opening
	resetTimeout time.Duration // time since last failure before half-open
	halfOpenMax  int           // consecutive half-open successes before closing
	lastFailure  time.Time
	now          func() time.Time
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerThreshold sets the failure count that trips the breaker open.
func WithBreakerThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) { cb.threshold = n }
}

// WithBreakerResetTimeout sets how long after the last failure an open
// breaker lets a trial call through.
func WithBreakerResetTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) { cb.resetTimeout = d }
}

// WithBreakerHalfOpenMax sets how many consecutive half-open successes
// close the breaker.
func WithBreakerHalfOpenMax(n int) BreakerOption {
	return func(cb *CircuitBreaker) { cb.halfOpenMax = n }
}

// WithBreakerClock sets a custom clock function (for testing).
func WithBreakerClock(fn func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = fn }
}

// NewCircuitBreaker creates a breaker for service with defaults of
// 5 failures to open, 60s reset timeout and 2 successes to close.
func NewCircuitBreaker(service string, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		service:      service,
		state:        BreakerClosed,
		threshold:    5,
		resetTimeout: 60 * time.Second,
		halfOpenMax:  2,
		now:          time.Now,
	}
	for _, o := range opts {
		o(cb)
	}
	return cb
}

// Service returns the name of the guarded dependency.
func (cb *CircuitBreaker) Service() string { return cb.service }

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Allow reports whether a call may proceed. In half-open only one trial
// is admitted until its outcome is recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	switch cb.state {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
	}
	return true
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case BreakerHalfOpen:
		cb.probing = false
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
		}
	case BreakerClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailure = cb.now()
	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.state = BreakerOpen
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.successes = 0
		cb.probing = false
	}
}

// maybeTransition moves an open breaker to half-open once resetTimeout has
// elapsed since the last failure. Must be called with mu held.
func (cb *CircuitBreaker) maybeTransition() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		cb.state = BreakerHalfOpen
		cb.successes = 0
		cb.probing = false
	}
}

// Execute runs fn under the breaker. fn is not invoked while the breaker
// is open; the call fails with *ErrCircuitOpen instead. A panic in fn is
// recorded as a failure and re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.Allow() {
		return &ErrCircuitOpen{Service: cb.service}
	}
	defer func() {
		if r := recover(); r != nil {
			cb.RecordFailure()
			panic(r)
		}
	}()
	if err := fn(ctx); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// WithCircuitBreaker returns a HandlerMiddleware that wraps calls with
// a circuit breaker. When the breaker is open, calls are rejected
// immediately with ErrCircuitOpen.
func WithCircuitBreaker(cb *CircuitBreaker) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var resp []byte
			err := cb.Execute(ctx, func(ctx context.Context) error {
				var err error
				resp, err = next(ctx, payload)
				return err
			})
			return resp, err
		}
	}
}
