package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rule limits one endpoint ("METHOD /path") to Max requests per Window
// per client.
type Rule struct {
	Max    int
	Window time.Duration
}

// DefaultRules throttles the endpoints that drive the browser or a paid
// provider. Everything else is unlimited.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"POST /v1/extract":   {Max: 20, Window: time.Minute},
		"POST /v1/summarize": {Max: 60, Window: time.Minute},
	}
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter applies fixed-window limits per client IP and endpoint.
type RateLimiter struct {
	rules   map[string]Rule
	exclude []string // path prefixes excluded from rate limiting
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter returns a limiter enforcing rules. Paths starting with any
// of excludePrefixes are never limited.
func NewRateLimiter(rules map[string]Rule, excludePrefixes ...string) *RateLimiter {
	return &RateLimiter{
		rules:   rules,
		exclude: excludePrefixes,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// GC drops expired buckets and returns how many remain.
func (rl *RateLimiter) GC() int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, k)
		}
	}
	return len(rl.buckets)
}

// allow reports whether the request may proceed and, when it may not, how
// long until the window resets.
func (rl *RateLimiter) allow(ip, endpoint string) (bool, time.Duration) {
	rule, ok := rl.rules[endpoint]
	if !ok || rule.Max <= 0 || rule.Window <= 0 {
		return true, 0
	}

	key := ip + " " + endpoint
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rule.Window)}
		return true, 0
	}
	b.count++
	if b.count <= rule.Max {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Middleware answers 429 with a JSON error once a client exceeds its rule.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)
		ok, wait := rl.allow(ip, endpoint)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "endpoint", endpoint)

		secs := int(wait.Round(time.Second) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
