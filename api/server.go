// Package api exposes extraction and compilation over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptcap/compile"
	"github.com/hazyhaar/promptcap/extraction"
	"github.com/hazyhaar/promptcap/kit"
	"github.com/hazyhaar/promptcap/prompt"
	"github.com/hazyhaar/promptcap/shield"
)

// MaxWait bounds the long-poll of GET /v1/latest.
const MaxWait = 60 * time.Second

// Extractor is the orchestrator surface the API drives.
type Extractor interface {
	Extract(ctx context.Context, mode prompt.Mode, pref prompt.Preference, opts compile.Options) (*prompt.ExtractionResult, error)
	Latest() *extraction.Latest
	Platform() (string, bool)
	Forget(ctx context.Context) error
}

// Summarizer compiles an explicit prompt list.
type Summarizer interface {
	Summarize(ctx context.Context, prompts []prompt.Prompt, opts compile.Options) (*prompt.SummaryResult, error)
}

// Server serves the promptcap API. Either dependency may be nil; the routes
// that need it then answer 503.
type Server struct {
	ext     Extractor
	sum     Summarizer
	limiter *shield.RateLimiter
	logger  *slog.Logger

	extract   kit.Endpoint
	summarize kit.Endpoint
	platform  kit.Endpoint
	forget    kit.Endpoint
}

// NewServer builds the shared endpoints for ext and sum.
func NewServer(ext Extractor, sum Summarizer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ext:     ext,
		sum:     sum,
		limiter: shield.NewRateLimiter(shield.DefaultRules(), "/healthz", "/mcp"),
		logger:  logger,
	}
	s.extract = kit.Logging(logger, "extract")(s.doExtract)
	s.summarize = kit.Logging(logger, "summarize")(s.doSummarize)
	s.platform = kit.Logging(logger, "platform")(s.doPlatform)
	s.forget = kit.Logging(logger, "forget")(s.doForget)
	return s
}

// Limiter returns the rate limiter guarding the routes. Callers run its GC
// periodically.
func (s *Server) Limiter() *shield.RateLimiter { return s.limiter }

// ExtractRequest is the body of POST /v1/extract and the promptcap_extract
// tool arguments.
type ExtractRequest struct {
	Mode    string          `json:"mode,omitempty"`
	Source  string          `json:"source,omitempty"`
	Options compile.Options `json:"options"`
}

// ExtractResponse wraps a result with its status: "ok" or "unsupported".
type ExtractResponse struct {
	Status string                   `json:"status"`
	Result *prompt.ExtractionResult `json:"result,omitempty"`
}

// SummarizeRequest is the body of POST /v1/summarize. Texts is a shorthand
// for prompts carrying content only.
type SummarizeRequest struct {
	Prompts []prompt.Prompt `json:"prompts,omitempty"`
	Texts   []string        `json:"texts,omitempty"`
	Options compile.Options `json:"options"`
}

// PlatformResponse names the platform of the attached page.
type PlatformResponse struct {
	Supported bool   `json:"supported"`
	Platform  string `json:"platform,omitempty"`
}

var (
	errUnavailable = errors.New("api: not configured")
	errBadRequest  = errors.New("api: bad request")
)

func (s *Server) doExtract(ctx context.Context, req any) (any, error) {
	if s.ext == nil {
		return nil, errUnavailable
	}
	r := req.(*ExtractRequest)
	mode, err := prompt.ParseMode(r.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	pref, err := prompt.ParsePreference(r.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	res, err := s.ext.Extract(ctx, mode, pref, r.Options)
	if errors.Is(err, extraction.ErrUnsupported) {
		return &ExtractResponse{Status: "unsupported"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ExtractResponse{Status: "ok", Result: res}, nil
}

func (s *Server) doSummarize(ctx context.Context, req any) (any, error) {
	if s.sum == nil {
		return nil, errUnavailable
	}
	r := req.(*SummarizeRequest)
	ps := r.Prompts
	for _, t := range r.Texts {
		ps = append(ps, prompt.Prompt{Content: t})
	}
	return s.sum.Summarize(ctx, prompt.Reindex(ps), r.Options)
}

func (s *Server) doForget(ctx context.Context, _ any) (any, error) {
	if s.ext == nil {
		return nil, errUnavailable
	}
	if err := s.ext.Forget(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"status": "forgotten"}, nil
}

func (s *Server) doPlatform(_ context.Context, _ any) (any, error) {
	if s.ext == nil {
		return &PlatformResponse{}, nil
	}
	name, ok := s.ext.Platform()
	return &PlatformResponse{Supported: ok, Platform: name}, nil
}

// Router returns the HTTP handler. The MCP server, when given, is mounted
// at /mcp over streamable HTTP.
func (s *Server) Router(mcpSrv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestContext)
	for _, mw := range shield.Stack(s.limiter) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handle(s.extract, decodeBody[ExtractRequest]))
		r.Post("/summarize", s.handle(s.summarize, decodeBody[SummarizeRequest]))
		r.Get("/platform", s.handle(s.platform, func(*http.Request) (any, error) { return nil, nil }))
		r.Get("/latest", s.latest)
		r.Delete("/captures", s.handle(s.forget, func(*http.Request) (any, error) { return nil, nil }))
	})

	if mcpSrv != nil {
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	}
	return r
}

func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeBody[T any](r *http.Request) (any, error) {
	v := new(T)
	if r.ContentLength == 0 {
		return v, nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return v, nil
}

func (s *Server) handle(ep kit.Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := ep(r.Context(), req)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// latest returns the newest result, 204 when there is none. With
// ?wait=<duration> it blocks until a result is available or the wait runs
// out.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	if s.ext == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	cell := s.ext.Latest()
	if v := cell.Get(); v != nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: wait must be a positive duration", errBadRequest))
		return
	}
	ch, cancel := cell.Subscribe()
	defer cancel()
	// A value may have landed between Get and Subscribe.
	if v := cell.Get(); v != nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	timer := time.NewTimer(min(wait, MaxWait))
	defer timer.Stop()
	select {
	case v := <-ch:
		writeJSON(w, http.StatusOK, v)
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, compile.ErrNoPrompts):
		return http.StatusBadRequest
	case errors.Is(err, extraction.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, extraction.ErrUnsupported):
		return http.StatusNotFound
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
