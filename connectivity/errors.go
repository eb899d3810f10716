package connectivity

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker guarding a service is
// open. The wrapped operation was not invoked.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("connectivity: circuit open: %s: service temporarily unavailable", e.Service)
}

// ErrTimeout is returned when a call was aborted because it exceeded its
// deadline. It is distinguishable from a caller cancellation.
type ErrTimeout struct {
	Service string
	After   time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("connectivity: call timeout: %s after %s", e.Service, e.After)
}

// StatusError carries a non-2xx HTTP response. Message holds the server's
// "error" field when the body had one, otherwise the raw body.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("connectivity: status %d", e.Status)
	}
	return fmt.Sprintf("connectivity: status %d: %s", e.Status, e.Message)
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("connectivity: handler panicked: %v", e.Value)
}

// StatusOf returns the HTTP status carried by err, or 0 when err has none.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Retryable reports whether err is worth another attempt: timeouts and
// aborts, failures without an HTTP status, and 5xx responses.
// Everything else (4xx and similar) is final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var to *ErrTimeout
	if errors.As(err, &to) {
		return true
	}
	var co *ErrCircuitOpen
	if errors.As(err, &co) {
		return false
	}
	status := StatusOf(err)
	return status == 0 || status >= 500
}
