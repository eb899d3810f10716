package connectivity_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hazyhaar/promptcap/connectivity"
)

func Example_middleware() {
	echo := func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}

	wrapped := connectivity.Chain(
		connectivity.Recovery(nil),
		connectivity.Timeout(5*time.Second, "echo"),
	)(echo)

	resp, err := wrapped(context.Background(), []byte("hello"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(resp))
	// Output:
	// hello
}

func Example_circuitBreaker() {
	cb := connectivity.NewCircuitBreaker("payments",
		connectivity.WithBreakerThreshold(2),
		connectivity.WithBreakerResetTimeout(100*time.Millisecond),
	)

	failingHandler := func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, fmt.Errorf("service down")
	}

	wrapped := connectivity.WithCircuitBreaker(cb)(failingHandler)

	// First two calls fail and trip the breaker.
	wrapped(context.Background(), nil)
	wrapped(context.Background(), nil)

	// Third call is rejected by the circuit breaker.
	_, err := wrapped(context.Background(), nil)
	fmt.Println(err)
	fmt.Println(cb.State())
	// Output:
	// connectivity: circuit open: payments: service temporarily unavailable
	// OPEN
}

func ExampleRetryWithBackoff() {
	attempts := 0
	policy := connectivity.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	err := connectivity.RetryWithBackoff(context.Background(), policy, nil, func(ctx context.Context) error {
		attempts++
		return &connectivity.StatusError{Status: 404, Message: "no such model"}
	})
	fmt.Println(attempts, connectivity.StatusOf(err), errors.Unwrap(err) == nil)
	// Output:
	// 1 404 true
}
