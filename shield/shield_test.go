package shield

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(DefaultHeaders())(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/latest", nil))
	for h, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(h); got != want {
			t.Errorf("%s = %q, want %q", h, got, want)
		}
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { method = r.Method }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/healthz", nil))
	if method != http.MethodGet {
		t.Fatalf("method = %s", method)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/summarize", strings.NewReader(strings.Repeat("x", 32))))
	if readErr == nil || !strings.Contains(readErr.Error(), "too large") {
		t.Fatalf("read error = %v", readErr)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(map[string]Rule{"POST /v1/extract": {Max: 2, Window: time.Minute}}, "/healthz")
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler)

	call := func(method, path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call(http.MethodPost, "/v1/extract", "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("call %d: %d", i, rec.Code)
		}
	}
	rec := call(http.MethodPost, "/v1/extract", "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("third call: %d retry-after %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := call(http.MethodPost, "/v1/extract", "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other client blocked: %d", rec.Code)
	}
	if rec := call(http.MethodGet, "/v1/latest", "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("unruled endpoint blocked: %d", rec.Code)
	}

	now = now.Add(61 * time.Second)
	if rec := call(http.MethodPost, "/v1/extract", "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("after window: %d", rec.Code)
	}
	if n := rl.GC(); n != 1 {
		t.Fatalf("buckets after GC = %d", n)
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if ip := ExtractIP(req); ip != "192.0.2.7" {
		t.Fatalf("remote addr: %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ExtractIP(req); ip != "203.0.113.9" {
		t.Fatalf("xff: %q", ip)
	}
}
