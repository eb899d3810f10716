package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"
)

// Handler is a unit of remote work: a payload goes in, a response comes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// HandlerMiddleware wraps a Handler, adding cross-cutting behaviour
// (logging, timeout, recovery, retries) without changing the signature.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares left-to-right: the first middleware in the
// slice is the outermost wrapper (executed first on the request path).
//
//	chain := Chain(breaker, retry, timeout)
//	wrapped := chain(baseHandler)
func Chain(mws ...HandlerMiddleware) HandlerMiddleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging returns a middleware that logs every call with its duration.
func Logging(logger *slog.Logger, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			dur := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "call failed",
					"service", service,
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"error", err)
			} else {
				logger.DebugContext(ctx, "call ok",
					"service", service,
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"response_bytes", len(resp))
			}
			return resp, err
		}
	}
}

// Timeout returns a middleware that aborts the call after d. An abort
// caused by this deadline surfaces as *ErrTimeout; a cancellation coming
// from the caller's context is returned as is.
func Timeout(d time.Duration, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if d <= 0 {
				return next(ctx, payload)
			}
			callCtx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			resp, err := next(callCtx, payload)
			if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, &ErrTimeout{Service: service, After: d}
			}
			return resp, err
		}
	}
}

// Recovery returns a middleware that catches panics in downstream handlers
// and converts them into errors instead of crashing the process.
func Recovery(logger *slog.Logger) HandlerMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "handler panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}
