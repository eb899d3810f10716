// Package shield provides the HTTP hardening middleware the promptcap API
// runs behind: security headers, a JSON body limit, HEAD handling and an
// in-memory per-client rate limiter.
//
// Usage:
//
//	rl := shield.NewRateLimiter(shield.DefaultRules(), "/healthz")
//	for _, mw := range shield.Stack(rl) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

// DefaultMaxBody bounds request bodies. A summarize request with a few
// hundred long prompts stays well below it.
const DefaultMaxBody = 4 << 20

// Stack returns the standard middleware stack, outermost first:
// HeadToGet, SecurityHeaders, MaxBody, then the rate limiter when rl is set.
func Stack(rl *RateLimiter) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(DefaultMaxBody),
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}
