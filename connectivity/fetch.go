package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxHTTPResponseBody caps the amount of response data read from remote
// HTTP endpoints (10 MiB).
const maxHTTPResponseBody int64 = 10 << 20

// DefaultFetchTimeout bounds a single HTTP attempt.
const DefaultFetchTimeout = 30 * time.Second

// ValidateEndpoint checks that raw is an absolute http(s) URL.
func ValidateEndpoint(raw string) error {
	if raw == "" {
		return fmt.Errorf("connectivity: empty endpoint")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("connectivity: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("connectivity: endpoint scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("connectivity: endpoint %q has no host", raw)
	}
	return nil
}

// HTTPPost returns a Handler that POSTs the payload as JSON to endpoint.
// Non-2xx responses become *StatusError.
func HTTPPost(endpoint string, client *http.Client, headers map[string]string) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("connectivity/http: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("connectivity/http: do request: %w", err)
		}
		defer resp.Body.Close()

		body, err := readLimited(resp.Body, maxHTTPResponseBody)
		if err != nil {
			return nil, fmt.Errorf("connectivity/http: read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Status: resp.StatusCode, Message: errorMessage(body)}
		}
		return body, nil
	}
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("response exceeds %d bytes", max)
	}
	return data, nil
}

// errorMessage extracts the "error" field of a JSON error body, falling
// back to a trimmed prefix of the raw body.
func errorMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		var s string
		if len(env.Error) > 0 && json.Unmarshal(env.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if len(env.Error) > 0 && json.Unmarshal(env.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

type fetchConfig struct {
	client  *http.Client
	timeout time.Duration
	policy  RetryPolicy
	breaker *CircuitBreaker
	headers map[string]string
	logger  *slog.Logger
}

// FetchOption configures a Fetcher.
type FetchOption func(*fetchConfig)

// WithHTTPClient sets the HTTP client used for every attempt.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(fc *fetchConfig) { fc.client = c }
}

// WithFetchTimeout overrides the per-attempt timeout (default 30s).
func WithFetchTimeout(d time.Duration) FetchOption {
	return func(fc *fetchConfig) { fc.timeout = d }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) FetchOption {
	return func(fc *fetchConfig) { fc.policy = p }
}

// WithBreaker shares an existing breaker instead of creating one per
// Fetcher. Use it when several endpoints live on the same origin.
func WithBreaker(cb *CircuitBreaker) FetchOption {
	return func(fc *fetchConfig) { fc.breaker = cb }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) FetchOption {
	return func(fc *fetchConfig) { fc.headers[key] = value }
}

// WithFetchLogger sets the logger for retries and call outcomes.
func WithFetchLogger(l *slog.Logger) FetchOption {
	return func(fc *fetchConfig) { fc.logger = l }
}

// Fetcher is the resilient fetch path to one endpoint:
// breaker(retry(timeout(http))). The breaker counts one retried call as a
// single success or failure.
type Fetcher struct {
	endpoint string
	breaker  *CircuitBreaker
	handler  Handler
}

// NewFetcher validates endpoint and assembles the middleware chain.
func NewFetcher(endpoint string, opts ...FetchOption) (*Fetcher, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	fc := fetchConfig{
		timeout: DefaultFetchTimeout,
		policy:  DefaultRetryPolicy(),
		headers: make(map[string]string),
	}
	for _, o := range opts {
		o(&fc)
	}
	if fc.logger == nil {
		fc.logger = slog.Default()
	}
	if fc.breaker == nil {
		u, _ := url.Parse(endpoint)
		fc.breaker = NewCircuitBreaker(u.Host)
	}
	service := fc.breaker.Service()

	h := Chain(
		WithCircuitBreaker(fc.breaker),
		Logging(fc.logger, service),
		WithRetry(fc.policy, fc.logger),
		Recovery(fc.logger),
		Timeout(fc.timeout, service),
	)(HTTPPost(endpoint, fc.client, fc.headers))

	return &Fetcher{endpoint: endpoint, breaker: fc.breaker, handler: h}, nil
}

// Endpoint returns the target URL.
func (f *Fetcher) Endpoint() string { return f.endpoint }

// Breaker returns the breaker guarding this fetcher.
func (f *Fetcher) Breaker() *CircuitBreaker { return f.breaker }

// Post sends payload and returns the response body.
func (f *Fetcher) Post(ctx context.Context, payload []byte) ([]byte, error) {
	return f.handler(ctx, payload)
}

// PostJSON marshals in, posts it and decodes the response into out.
func (f *Fetcher) PostJSON(ctx context.Context, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("connectivity: marshal request: %w", err)
	}
	body, err := f.Post(ctx, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("connectivity: decode response: %w", err)
	}
	return nil
}
