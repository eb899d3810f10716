package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptcap/compile"
	"github.com/hazyhaar/promptcap/extraction"
	"github.com/hazyhaar/promptcap/prompt"
)

type fakeExtractor struct {
	latest    *extraction.Latest
	err       error
	forgotten bool
	mode   prompt.Mode
	pref   prompt.Preference
	opts   compile.Options
}

func (f *fakeExtractor) Extract(_ context.Context, mode prompt.Mode, pref prompt.Preference, opts compile.Options) (*prompt.ExtractionResult, error) {
	f.mode, f.pref, f.opts = mode, pref, opts
	if f.err != nil {
		return nil, f.err
	}
	res := &prompt.ExtractionResult{
		ID:       "ext_1",
		Platform: "chatgpt",
		Prompts:  []prompt.Prompt{{Content: "hello", Source: prompt.SourceDOM}},
		Mode:     mode,
	}
	f.latest.Set(res)
	return res, nil
}

func (f *fakeExtractor) Latest() *extraction.Latest { return f.latest }
func (f *fakeExtractor) Platform() (string, bool)   { return "ChatGPT", true }

func (f *fakeExtractor) Forget(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.forgotten = true
	return nil
}

func newTestServer(t *testing.T, ext *fakeExtractor) *httptest.Server {
	t.Helper()
	s := NewServer(ext, compile.NewPipeline(compile.Config{}), nil)
	srv := httptest.NewServer(s.Router(nil))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestForgetCaptures(t *testing.T) {
	ext := &fakeExtractor{latest: extraction.NewLatest()}
	srv := newTestServer(t, ext)
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/captures", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !ext.forgotten {
		t.Fatalf("status = %d, forgotten = %v", resp.StatusCode, ext.forgotten)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{latest: extraction.NewLatest()})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestExtract(t *testing.T) {
	ext := &fakeExtractor{latest: extraction.NewLatest()}
	srv := newTestServer(t, ext)

	resp, out := post(t, srv.URL+"/v1/extract", `{"mode":"compile","source":"keylog","options":{"tone":"formal"}}`)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
	}
	if ext.mode != prompt.ModeCompile || ext.pref != prompt.PreferKeylog || ext.opts.Tone != "formal" {
		t.Fatalf("forwarded %v %v %+v", ext.mode, ext.pref, ext.opts)
	}
	result := out["result"].(map[string]any)
	if result["id"] != "ext_1" {
		t.Fatalf("result = %v", result)
	}
}

func TestExtract_EmptyBodyDefaults(t *testing.T) {
	ext := &fakeExtractor{latest: extraction.NewLatest()}
	srv := newTestServer(t, ext)
	resp, _ := post(t, srv.URL+"/v1/extract", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ext.mode != prompt.ModeCapture || ext.pref != prompt.PreferAuto {
		t.Fatalf("defaults = %v %v", ext.mode, ext.pref)
	}
}

func TestExtract_Statuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		code   int
		status string
	}{
		{"unsupported", extraction.ErrUnsupported, `{}`, http.StatusOK, "unsupported"},
		{"in progress", extraction.ErrInProgress, `{}`, http.StatusConflict, ""},
		{"bad mode", nil, `{"mode":"everything"}`, http.StatusBadRequest, ""},
		{"bad source", nil, `{"source":"ocr"}`, http.StatusBadRequest, ""},
		{"bad json", nil, `{`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeExtractor{latest: extraction.NewLatest(), err: tc.err})
			resp, out := post(t, srv.URL+"/v1/extract", tc.body)
			if resp.StatusCode != tc.code {
				t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
			}
			if tc.status != "" && out["status"] != tc.status {
				t.Fatalf("body = %v", out)
			}
		})
	}
}

func TestSummarize_Local(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{latest: extraction.NewLatest()})
	resp, out := post(t, srv.URL+"/v1/summarize", `{"texts":["write a story about a cat","make it funny!"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
	}
	if out["provider"] != compile.ProviderLocal {
		t.Fatalf("provider = %v", out["provider"])
	}
	if s, _ := out["summary"].(string); !strings.HasSuffix(s, compile.LocalSuffix) {
		t.Fatalf("summary = %q", s)
	}
}

func TestSummarize_NoPrompts(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{latest: extraction.NewLatest()})
	resp, _ := post(t, srv.URL+"/v1/summarize", `{"texts":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPlatform(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{latest: extraction.NewLatest()})
	resp, err := http.Get(srv.URL + "/v1/platform")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out PlatformResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Supported || out.Platform != "ChatGPT" {
		t.Fatalf("platform = %+v", out)
	}
}

func TestLatest(t *testing.T) {
	ext := &fakeExtractor{latest: extraction.NewLatest()}
	srv := newTestServer(t, ext)

	resp, err := http.Get(srv.URL + "/v1/latest")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("empty cell: status = %d", resp.StatusCode)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		ext.latest.Set(&prompt.ExtractionResult{ID: "ext_9"})
	}()
	resp, err = http.Get(srv.URL + "/v1/latest?wait=5s")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var res prompt.ExtractionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.ID != "ext_9" {
		t.Fatalf("long-poll got %+v", res)
	}
}

func TestLatest_BadWait(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{latest: extraction.NewLatest()})
	resp, err := http.Get(srv.URL + "/v1/latest?wait=soon")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUnconfigured(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil, nil, nil).Router(nil))
	defer srv.Close()
	for _, path := range []string{"/v1/extract", "/v1/summarize"} {
		resp, _ := post(t, srv.URL+path, `{}`)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d", path, resp.StatusCode)
		}
	}
}

// --- MCP ---

var testMCPImpl = &mcp.Implementation{Name: "promptcap-test", Version: "0.1.0"}

func mcpSession(t *testing.T, ext *fakeExtractor) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	NewServer(ext, compile.NewPipeline(compile.Config{}), nil).RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func mcpText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	if result.IsError {
		t.Fatalf("tool error: %s", tc.Text)
	}
	return tc.Text
}

func TestMCP_Summarize(t *testing.T) {
	session := mcpSession(t, &fakeExtractor{latest: extraction.NewLatest()})
	text := mcpText(t, mcpCall(t, session, "promptcap_summarize", map[string]any{
		"texts": []string{"fix the login bug", "add a regression test"},
	}))
	var res prompt.SummaryResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatal(err)
	}
	if res.Provider != compile.ProviderLocal || res.PromptCount.Before != 2 {
		t.Fatalf("summary = %+v", res)
	}
}

func TestMCP_ExtractAndPlatform(t *testing.T) {
	ext := &fakeExtractor{latest: extraction.NewLatest()}
	session := mcpSession(t, ext)

	text := mcpText(t, mcpCall(t, session, "promptcap_extract", map[string]any{"source": "dom"}))
	var resp ExtractResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Result.ID != "ext_1" || ext.pref != prompt.PreferDOM {
		t.Fatalf("extract = %+v", resp)
	}

	text = mcpText(t, mcpCall(t, session, "promptcap_platform", map[string]any{}))
	if !strings.Contains(text, `"platform":"ChatGPT"`) {
		t.Fatalf("platform = %s", text)
	}
}

func TestMCP_ExtractBusyIsToolError(t *testing.T) {
	session := mcpSession(t, &fakeExtractor{latest: extraction.NewLatest(), err: extraction.ErrInProgress})
	result := mcpCall(t, session, "promptcap_extract", map[string]any{})
	if !result.IsError {
		t.Fatal("expected a tool error")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(tc.Text, "already in progress") {
		t.Fatalf("tool error content = %+v", result.Content)
	}
}
