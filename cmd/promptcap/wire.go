package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/promptcap/bus"
	"github.com/hazyhaar/promptcap/cache"
	"github.com/hazyhaar/promptcap/capture"
	"github.com/hazyhaar/promptcap/compile"
	"github.com/hazyhaar/promptcap/config"
	"github.com/hazyhaar/promptcap/connectivity"
	"github.com/hazyhaar/promptcap/extraction"
	"github.com/hazyhaar/promptcap/kvstore"
	"github.com/hazyhaar/promptcap/scroll"
)

// Namespaces of the compile cache and the local compile ledger.
const (
	summaryNamespace = "summaries"
	usageNamespace   = "usage"
)

// app holds the long-lived components built from one configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	kv       kvstore.Backend
	captures *capture.Store
	summary  *cache.Cache
	pipeline *compile.Pipeline

	captureBus *bus.Client
	publishBus *bus.Client
	closers    []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	kv, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.kv = kv
	a.closers = append(a.closers, func() { kv.Close() })

	a.captures = capture.NewStore(kvstore.NewNamespace(kv, capture.Namespace),
		capture.WithLimit(cfg.Capture.Limit), capture.WithStoreLogger(logger))
	a.summary = cache.New(kvstore.NewNamespace(kv, summaryNamespace))

	a.pipeline, err = a.buildPipeline()
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Capture.NATSURL != "" {
		a.captureBus, err = bus.Connect(cfg.Capture.NATSURL, "", logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, a.captureBus.Close)
	}
	if cfg.Publish.NATSURL != "" {
		if cfg.Publish.NATSURL == cfg.Capture.NATSURL && cfg.Publish.Token == "" {
			a.publishBus = a.captureBus
		} else {
			a.publishBus, err = bus.Connect(cfg.Publish.NATSURL, cfg.Publish.Token, logger)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.closers = append(a.closers, a.publishBus.Close)
		}
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (kvstore.Backend, error) {
	switch sc.Driver {
	case "memory":
		return kvstore.NewMemory(), nil
	case "postgres":
		pg, err := kvstore.OpenPostgres(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		db, err := kvstore.OpenSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", sc.Driver)
	}
}

func (a *app) retryPolicy() connectivity.RetryPolicy {
	p := connectivity.DefaultRetryPolicy()
	p.MaxAttempts = a.cfg.Backend.Retries
	return p
}

func (a *app) breaker(service string) *connectivity.CircuitBreaker {
	return connectivity.NewCircuitBreaker(service,
		connectivity.WithBreakerThreshold(a.cfg.Backend.BreakerThreshold),
		connectivity.WithBreakerResetTimeout(a.cfg.Backend.BreakerReset))
}

func (a *app) fetcher(service, endpoint string) (*connectivity.Fetcher, error) {
	opts := []connectivity.FetchOption{
		connectivity.WithFetchTimeout(a.cfg.Backend.Timeout),
		connectivity.WithRetryPolicy(a.retryPolicy()),
		connectivity.WithBreaker(a.breaker(service)),
		connectivity.WithFetchLogger(a.logger),
	}
	if a.cfg.Backend.Token != "" {
		opts = append(opts, connectivity.WithHeader("Authorization", "Bearer "+a.cfg.Backend.Token))
	}
	return connectivity.NewFetcher(endpoint, opts...)
}

func (a *app) buildPipeline() (*compile.Pipeline, error) {
	cc := a.cfg.Compile
	opts := []compile.Option{compile.WithCache(a.summary)}

	if u := a.cfg.Backend.URL; u != "" {
		f, err := a.fetcher("backend", u)
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		opts = append(opts, compile.WithBackend(compile.NewBackend(f)))
	}
	if u := a.cfg.Backend.LegacyURL; u != "" {
		f, err := a.fetcher("legacy", u)
		if err != nil {
			return nil, fmt.Errorf("legacy backend: %w", err)
		}
		opts = append(opts, compile.WithLegacy(compile.NewLegacy(f)))
	}

	resilience := func(service string) compile.Resilience {
		return compile.Resilience{
			Breaker: a.breaker(service),
			Policy:  a.retryPolicy(),
			Timeout: a.cfg.Backend.Timeout,
			Logger:  a.logger,
		}
	}
	if u := a.cfg.Backend.TierURL; u != "" {
		f, err := a.fetcher("tier", u)
		if err != nil {
			return nil, fmt.Errorf("tier service: %w", err)
		}
		opts = append(opts, compile.WithTiers(compile.NewRemoteTiers(f)))
	} else {
		opts = append(opts, compile.WithTiers(compile.NewLedger(kvstore.NewNamespace(a.kv, usageNamespace), cc.Tier)))
	}

	anthropicModel, openaiModel := cc.PrimaryModel, cc.FallbackModel
	if cc.PrimaryProvider == "openai" {
		anthropicModel, openaiModel = cc.FallbackModel, cc.PrimaryModel
	}
	opts = append(opts,
		compile.WithDirect(compile.NewAnthropicProvider(a.cfg.Providers.AnthropicKey, anthropicModel, resilience("anthropic"))),
		compile.WithDirect(compile.NewOpenAIProvider(a.cfg.Providers.OpenAIKey, openaiModel, resilience("openai"))),
	)

	return compile.NewPipeline(compile.Config{
		RaceTimeout:      cc.RaceTimeout,
		CacheTTL:         cc.CacheTTL,
		FreeDailyLimit:   cc.FreeDailyLimit,
		PrimaryProvider:  cc.PrimaryProvider,
		PrimaryModel:     cc.PrimaryModel,
		FallbackProvider: cc.FallbackProvider,
		FallbackModel:    cc.FallbackModel,
		Logger:           a.logger,
	}, opts...), nil
}

// sink fans results out to stdout (when out is set), the configured sinks
// and the NATS publisher.
func (a *app) sink(out io.Writer) (extraction.Sink, error) {
	var sinks []extraction.Sink
	if out != nil {
		sinks = append(sinks, extraction.NewWriterSink(out, true))
	}
	for _, sc := range a.cfg.Sinks {
		switch sc.Type {
		case "stdout":
			if out == nil {
				sinks = append(sinks, extraction.NewWriterSink(stdout, sc.Indent))
			}
		case "webhook":
			f, err := a.fetcher("webhook", sc.URL)
			if err != nil {
				return nil, fmt.Errorf("webhook sink: %w", err)
			}
			sinks = append(sinks, extraction.NewWebhookSink(f))
		}
	}
	if a.publishBus != nil {
		sinks = append(sinks, extraction.NewNATSSink(a.publishBus, a.cfg.Publish.Subject))
	}
	return extraction.NewRouter(a.logger, sinks...), nil
}

// captureSources returns the spool and NATS sources that are configured.
func (a *app) captureSources(spoolDir string) []capture.Source {
	var sources []capture.Source
	if spoolDir == "" {
		spoolDir = a.cfg.Capture.SpoolDir
	}
	if spoolDir != "" {
		sources = append(sources, capture.NewSpoolSource(spoolDir, a.logger))
	}
	if a.captureBus != nil {
		sources = append(sources, capture.NewNATSSource(a.captureBus, a.cfg.Capture.NATSSubject, a.logger))
	}
	return sources
}

func (a *app) coalesce() capture.CoalesceConfig {
	return capture.CoalesceConfig{Settle: a.cfg.Capture.Settle}
}

func (a *app) orchestrator(page extraction.Page, sink extraction.Sink) *extraction.Orchestrator {
	return extraction.New(page,
		extraction.WithCaptures(a.captures),
		extraction.WithPipeline(a.pipeline),
		extraction.WithSink(sink),
		extraction.WithGuardTimeout(a.cfg.GuardTimeout),
		extraction.WithSpeed(scroll.Speed(a.cfg.Scroll.Mode)),
		extraction.WithLogger(a.logger),
	)
}

func (a *app) startJanitor() (*cache.Janitor, error) {
	j, err := cache.NewJanitor(a.cfg.Compile.CachePurge, a.logger, a.summary)
	if err != nil {
		return nil, err
	}
	j.Start()
	return j, nil
}
