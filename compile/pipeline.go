package compile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/promptcap/cache"
	"github.com/hazyhaar/promptcap/connectivity"
	"github.com/hazyhaar/promptcap/prompt"
)

// Config tunes the pipeline.
type Config struct {
	// RaceTimeout bounds the cloud attempt. Default: 10s.
	RaceTimeout time.Duration
	// CacheTTL is how long cloud summaries are reused. Default: 30m.
	CacheTTL time.Duration
	// FreeDailyLimit is the compile count after which constrained tiers
	// are downgraded. Default: 10.
	FreeDailyLimit int

	PrimaryProvider  string // default "anthropic"
	PrimaryModel     string
	FallbackProvider string // default "openai"
	FallbackModel    string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RaceTimeout <= 0 {
		c.RaceTimeout = 10 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.FreeDailyLimit <= 0 {
		c.FreeDailyLimit = 10
	}
	if c.PrimaryProvider == "" {
		c.PrimaryProvider = "anthropic"
	}
	if c.FallbackProvider == "" {
		c.FallbackProvider = "openai"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pipeline compiles prompt lists.
type Pipeline struct {
	cfg     Config
	backend Cloud
	legacy  Cloud
	direct  map[string]Direct
	tiers   TierLookup
	cache   *cache.Cache
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBackend sets the primary compile service.
func WithBackend(c Cloud) Option { return func(p *Pipeline) { p.backend = c } }

// WithLegacy sets the last-resort compile service.
func WithLegacy(c Cloud) Option { return func(p *Pipeline) { p.legacy = c } }

// WithDirect registers a provider SDK client under its name.
func WithDirect(d Direct) Option { return func(p *Pipeline) { p.direct[d.Name()] = d } }

// WithTiers sets the tier lookup used for model downgrades.
func WithTiers(t TierLookup) Option { return func(p *Pipeline) { p.tiers = t } }

// WithCache enables caching of cloud summaries.
func WithCache(c *cache.Cache) Option { return func(p *Pipeline) { p.cache = c } }

// NewPipeline returns a Pipeline. With no backend and no direct provider
// every call resolves to the local summary.
func NewPipeline(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{cfg: cfg, direct: make(map[string]Direct)}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Summarize returns a cloud summary when one can be had within
// RaceTimeout, else the local summary. The only error is ErrNoPrompts.
func (p *Pipeline) Summarize(ctx context.Context, prompts []prompt.Prompt, opts Options) (*prompt.SummaryResult, error) {
	local, err := Local(prompts)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.RaceTimeout)
	defer cancel()
	if res, err := p.Cloud(cctx, prompts, opts); err == nil {
		return res, nil
	}
	return local, nil
}

// Cloud runs the cloud path alone: cache, tier routing, the backend or a
// direct provider, then the legacy service when the primary request could
// not be prepared. Panics are returned as *connectivity.ErrPanic.
func (p *Pipeline) Cloud(ctx context.Context, prompts []prompt.Prompt, opts Options) (res *prompt.SummaryResult, err error) {
	log := p.cfg.Logger
	defer func() {
		if r := recover(); r != nil {
			log.Error("compile: panic in cloud path", "panic", r)
			res, err = nil, &connectivity.ErrPanic{Value: r}
		}
	}()

	kept := prompt.Dedup(prompts)
	if len(kept) == 0 {
		return nil, ErrNoPrompts
	}
	opts = opts.normalize(log)

	start := time.Now()
	req, cloud, perr := p.prepare(ctx, kept, opts)

	// Keyed on the route actually taken, so a downgraded answer is never
	// served to a user entitled to the primary model.
	routed := opts
	routed.Provider, routed.Model = req.Provider, req.Model
	key := CacheKey(kept, routed)
	if p.cache != nil {
		var cached prompt.SummaryResult
		if ok, err := p.cache.Get(ctx, key, &cached); err == nil && ok {
			log.Debug("compile: cache hit", "provider", cached.Provider)
			cached.Original = prompts
			return &cached, nil
		}
	}

	if perr != nil {
		if p.legacy == nil {
			return nil, perr
		}
		log.Warn("compile: primary request not prepared, trying legacy", "error", perr)
		cloud = p.legacy
	}

	resp, err := cloud.Compile(ctx, req)
	if err != nil {
		log.Warn("compile: cloud attempt failed", "provider", cloud.Name(),
			"duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, err
	}
	if resp.Provider == "" {
		resp.Provider = cloud.Name()
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}

	res = &prompt.SummaryResult{
		Original:    prompts,
		Summary:     resp.Summary,
		PromptCount: prompt.Count{Before: len(prompts), After: len(prompts)},
		Provider:    resp.Provider,
		Model:       resp.Model,
	}
	log.Info("compile: cloud summary", "provider", res.Provider, "model", res.Model,
		"prompts", len(prompts), "duration_ms", time.Since(start).Milliseconds())

	if p.cache != nil && res.Provider != ProviderLocal {
		if err := p.cache.Set(ctx, key, res, p.cfg.CacheTTL); err != nil {
			log.Warn("compile: cache write failed", "error", err)
		}
	}
	if rec, ok := p.tiers.(Recorder); ok && opts.UserID != "" {
		if err := rec.Record(ctx, opts.UserID); err != nil {
			log.Warn("compile: usage record failed", "user", opts.UserID, "error", err)
		}
	}
	return res, nil
}

// prepare builds the primary request and picks who serves it. Errors
// wrap ErrInvalidConfig. A request is still returned so the legacy
// service can use it.
func (p *Pipeline) prepare(ctx context.Context, prompts []prompt.Prompt, opts Options) (Request, Cloud, error) {
	var usage Usage
	if p.tiers != nil && opts.UserID != "" {
		u, err := p.tiers.Usage(ctx, opts.UserID)
		if err != nil {
			p.cfg.Logger.Warn("compile: tier lookup failed", "error", err)
		} else {
			usage = u
		}
	}
	r := p.cfg.selectRoute(opts, usage)
	if r.downgraded {
		p.cfg.Logger.Info("compile: daily limit reached, using fallback model",
			"tier", usage.Tier, "provider", r.provider, "model", r.model)
	}
	// A caller key only ever goes to the provider it was supplied for.
	keyFor := opts.Provider
	if keyFor == "" {
		keyFor = p.cfg.PrimaryProvider
	}
	if opts.APIKey != "" && r.provider != keyFor {
		p.cfg.Logger.Info("compile: caller key withheld from rerouted provider",
			"key_provider", keyFor, "provider", r.provider)
		opts.APIKey = ""
	}

	req := Request{
		Content:        joinContent(prompt.Contents(prompts)),
		Platform:       opts.Platform,
		AdditionalInfo: opts.AdditionalInfo,
		Provider:       r.provider,
		Model:          r.model,
		APIKey:         opts.APIKey,
		UserID:         opts.UserID,
		UserEmail:      opts.UserEmail,
		Options: RequestOptions{
			Format:    opts.Format,
			Tone:      opts.Tone,
			IncludeAI: opts.IncludeAI,
			Mode:      opts.Mode,
		},
	}

	d, known := p.direct[r.provider]
	switch {
	case opts.APIKey != "" && known:
		// A caller-supplied key goes straight to the provider.
		req.APIKey = ""
		return req, d.WithAPIKey(opts.APIKey), nil
	case p.backend != nil:
		return req, p.backend, nil
	case known && d.HasKey():
		return req, d, nil
	case known:
		return req, nil, fmt.Errorf("%w: no API key for %s", ErrInvalidConfig, r.provider)
	default:
		return req, nil, fmt.Errorf("%w: no backend and no provider %q", ErrInvalidConfig, r.provider)
	}
}
