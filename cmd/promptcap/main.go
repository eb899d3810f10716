// Command promptcap extracts the user prompts of an AI chat conversation
// and compiles them into one consolidated paragraph.
//
// Usage:
//
//	promptcap serve -config promptcap.yaml -url https://chatgpt.com/c/<id>
//	promptcap extract -url https://claude.ai/chat/<id> -mode compile -source auto
//	promptcap summarize < prompts.json
//	promptcap watch -spool ./spool
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/promptcap/api"
	"github.com/hazyhaar/promptcap/browser"
	"github.com/hazyhaar/promptcap/capture"
	"github.com/hazyhaar/promptcap/compile"
	"github.com/hazyhaar/promptcap/config"
	"github.com/hazyhaar/promptcap/prompt"
)

var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

const usage = `usage: promptcap <command> [flags]

commands:
  serve      open a chat page, capture sends and serve the HTTP/MCP API
  extract    extract one conversation and print the result
  summarize  compile prompts read from stdin as JSON
  watch      record captured prompts from the spool directory and NATS
  purge      drop cached cloud summaries (all of them with -all)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to promptcap.yaml")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")

	var run func(ctx context.Context, a *app) error
	switch cmd {
	case "serve":
		pageURL := fs.String("url", "", "chat page to open")
		attach := fs.Bool("attach", false, "attach to an open tab of the page's host instead of opening one")
		listen := fs.String("listen", "", "override the listen address")
		run = func(ctx context.Context, a *app) error {
			if *listen != "" {
				a.cfg.Listen = *listen
			}
			return serve(ctx, a, *pageURL, *attach)
		}
	case "extract":
		pageURL := fs.String("url", "", "chat page to extract")
		mode := fs.String("mode", "capture", "capture or compile")
		source := fs.String("source", "auto", "auto, dom or keylog")
		attach := fs.Bool("attach", false, "attach to an open tab instead of opening one")
		run = func(ctx context.Context, a *app) error {
			return extractOnce(ctx, a, *pageURL, *mode, *source, *attach)
		}
	case "summarize":
		format := fs.String("format", "", "paragraph, bullets or numbered")
		tone := fs.String("tone", "", "neutral, formal, casual or technical")
		provider := fs.String("provider", "", "anthropic or openai")
		user := fs.String("user", "", "user id counted against the daily compile allowance")
		run = func(ctx context.Context, a *app) error {
			return summarize(ctx, a, compile.Options{Format: *format, Tone: *tone, Provider: *provider, UserID: *user})
		}
	case "watch":
		spool := fs.String("spool", "", "spool directory of *.jsonl capture files")
		run = func(ctx context.Context, a *app) error {
			return watch(ctx, a, *spool)
		}
	case "purge":
		all := fs.Bool("all", false, "drop live entries too")
		run = func(ctx context.Context, a *app) error {
			return purge(ctx, a, *all)
		}
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "promptcap: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	fs.Parse(args)

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, logger, *configPath, run); err != nil {
		logger.Error("promptcap: fatal", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func start(ctx context.Context, logger *slog.Logger, configPath string, run func(context.Context, *app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()
	return run(ctx, a)
}

func openPage(ctx context.Context, a *app, pageURL string, attach bool) (*browser.Manager, *browser.Page, error) {
	if pageURL == "" {
		return nil, nil, errors.New("-url is required")
	}
	m := browser.NewManager(browser.Config{
		RemoteURL:   a.cfg.Browser.RemoteURL,
		Bin:         a.cfg.Browser.Bin,
		Headful:     !a.cfg.Browser.IsHeadless(),
		PageTimeout: a.cfg.Browser.PageTimeout,
		Logger:      a.logger,
	})
	if err := m.Start(ctx); err != nil {
		return nil, nil, err
	}
	var (
		page *browser.Page
		err  error
	)
	if attach {
		page, err = m.Attach(pageURL)
	} else {
		page, err = m.Open(ctx, pageURL)
	}
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	return m, page, nil
}

func serve(ctx context.Context, a *app, pageURL string, attach bool) error {
	m, page, err := openPage(ctx, a, pageURL, attach)
	if err != nil {
		return err
	}
	defer m.Close()

	sink, err := a.sink(nil)
	if err != nil {
		return err
	}
	orch := a.orchestrator(page, sink)

	janitor, err := a.startJanitor()
	if err != nil {
		return err
	}
	defer janitor.Stop()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		sources := append([]capture.Source{page.SendSource()}, a.captureSources("")...)
		capture.Pump(ctx, a.captures, a.coalesce(), a.logger, sources...)
	}()

	apiSrv := api.NewServer(orch, a.pipeline, a.logger)
	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "promptcap", Version: "1.0.0"}, nil)
	apiSrv.RegisterMCP(mcpSrv)

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           apiSrv.Router(mcpSrv),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * api.MaxWait,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				apiSrv.Limiter().GC()
			}
		}
	}()

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("promptcap: serving", "addr", a.cfg.Listen, "url", page.URL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	}
	a.logger.Info("promptcap: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("promptcap: shutdown", "error", err)
	}
	<-pumpDone
	return nil
}

func extractOnce(ctx context.Context, a *app, pageURL, rawMode, rawSource string, attach bool) error {
	mode, err := prompt.ParseMode(rawMode)
	if err != nil {
		return err
	}
	pref, err := prompt.ParsePreference(rawSource)
	if err != nil {
		return err
	}
	m, page, err := openPage(ctx, a, pageURL, attach)
	if err != nil {
		return err
	}
	defer m.Close()

	sink, err := a.sink(stdout)
	if err != nil {
		return err
	}
	_, err = a.orchestrator(page, sink).Extract(ctx, mode, pref, compile.Options{})
	return err
}

// readPrompts accepts a JSON array of strings or of prompt objects.
func readPrompts(r io.Reader) ([]prompt.Prompt, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var texts []string
	if err := json.Unmarshal(data, &texts); err == nil {
		ps := make([]prompt.Prompt, len(texts))
		for i, t := range texts {
			ps[i] = prompt.Prompt{Content: t, Index: i}
		}
		return ps, nil
	}
	var ps []prompt.Prompt
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("read prompts: want a JSON array of strings or prompts: %w", err)
	}
	return prompt.Reindex(ps), nil
}

func summarize(ctx context.Context, a *app, opts compile.Options) error {
	ps, err := readPrompts(stdin)
	if err != nil {
		return err
	}
	res, err := a.pipeline.Summarize(ctx, ps, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func purge(ctx context.Context, a *app, all bool) error {
	if all {
		if err := a.summary.Clear(ctx); err != nil {
			return err
		}
		a.logger.Info("promptcap: summary cache cleared")
		return nil
	}
	n, err := a.summary.Purge(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("promptcap: expired summaries purged", "count", n)
	return nil
}

func watch(ctx context.Context, a *app, spool string) error {
	sources := a.captureSources(spool)
	if len(sources) == 0 {
		return errors.New("nothing to watch: set -spool or capture.nats_url")
	}
	a.logger.Info("promptcap: watching", "sources", len(sources))
	capture.Pump(ctx, a.captures, a.coalesce(), a.logger, sources...)
	return nil
}
