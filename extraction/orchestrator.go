// Package extraction runs one extraction against a chat page: scroll the
// history into view, scrape it, merge it with captured prompts, optionally
// compile it, and hand the result to the latest-value cell and the sinks.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/promptcap/capture"
	"github.com/hazyhaar/promptcap/compile"
	"github.com/hazyhaar/promptcap/idgen"
	"github.com/hazyhaar/promptcap/platform"
	"github.com/hazyhaar/promptcap/prompt"
	"github.com/hazyhaar/promptcap/scroll"
)

// ErrUnsupported reports a page no adapter recognises. It is a terminal
// status rather than a failure: nothing was attempted.
var ErrUnsupported = errors.New("extraction: page unsupported")

// Page is what an extraction needs from a chat tab.
type Page interface {
	URL() string
	Title(ctx context.Context) (string, error)
	Document(ctx context.Context) (*html.Node, error)
	scroll.Scroller
	platform.ContainerFinder
}

// Orchestrator extracts from one page. Extractions on it never overlap.
type Orchestrator struct {
	page     Page
	captures *capture.Store
	pipeline *compile.Pipeline
	latest   *Latest
	sink     Sink
	guard    *Guard
	guardTTL time.Duration
	speed    scroll.Speed
	scrollFn []scroll.LoaderOption
	newID    idgen.Generator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCaptures sets the live and persisted capture store.
func WithCaptures(s *capture.Store) Option { return func(o *Orchestrator) { o.captures = s } }

// WithPipeline enables compile mode.
func WithPipeline(p *compile.Pipeline) Option { return func(o *Orchestrator) { o.pipeline = p } }

// WithLatest sets the latest-value cell results are published to.
func WithLatest(l *Latest) Option { return func(o *Orchestrator) { o.latest = l } }

// WithSink sets where finished results are delivered.
func WithSink(s Sink) Option { return func(o *Orchestrator) { o.sink = s } }

// WithGuardTimeout sets the re-entrancy guard's safety timeout.
func WithGuardTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.guardTTL = d }
}

// WithSpeed selects the fast or slow scroll table.
func WithSpeed(s scroll.Speed) Option { return func(o *Orchestrator) { o.speed = s } }

// WithScrollOptions passes options to the scroll loader and sampler.
func WithScrollOptions(opts ...scroll.LoaderOption) Option {
	return func(o *Orchestrator) { o.scrollFn = append(o.scrollFn, opts...) }
}

// WithIDGenerator sets the result id generator.
func WithIDGenerator(g idgen.Generator) Option { return func(o *Orchestrator) { o.newID = g } }

// WithClock sets the clock.
func WithClock(fn func() time.Time) Option { return func(o *Orchestrator) { o.now = fn } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// New returns an Orchestrator for page.
func New(page Page, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		page:   page,
		latest: NewLatest(),
		speed:  scroll.Fast,
		newID:  idgen.Extraction,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.guard = NewGuard(o.guardTTL, o.logger)
	if o.sink == nil {
		o.sink = NewRouter(o.logger)
	}
	o.scrollFn = append([]scroll.LoaderOption{scroll.WithLogger(o.logger)}, o.scrollFn...)
	return o
}

// Latest returns the orchestrator's latest-value cell.
func (o *Orchestrator) Latest() *Latest { return o.latest }

// Platform returns the display name of the page's platform.
func (o *Orchestrator) Platform() (string, bool) {
	return platform.Name(o.page.URL())
}

// Forget drops the captured prompts of the page's conversation, live and
// persisted. It fails with ErrUnsupported when no adapter matches.
func (o *Orchestrator) Forget(ctx context.Context) error {
	pageURL := o.page.URL()
	a := platform.Detect(pageURL)
	if a == nil {
		return ErrUnsupported
	}
	if o.captures == nil {
		return nil
	}
	convID := a.ConversationID(pageURL)
	if err := o.captures.Forget(ctx, a.Platform, convID, o.now()); err != nil {
		return fmt.Errorf("extraction: forget %s: %w", convID, err)
	}
	o.logger.Info("extraction: captures forgotten", "platform", a.Platform, "conversation_id", convID)
	return nil
}

// Extract produces a new result for the page. It fails with ErrInProgress
// when another extraction is running and with ErrUnsupported when no
// adapter matches. Scrape, capture-store and compile failures degrade the
// result instead of failing it.
func (o *Orchestrator) Extract(ctx context.Context, mode prompt.Mode, pref prompt.Preference, opts compile.Options) (*prompt.ExtractionResult, error) {
	release, err := o.guard.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	o.latest.Clear()

	pageURL := o.page.URL()
	a := platform.Detect(pageURL)
	if a == nil {
		return nil, ErrUnsupported
	}

	start := o.now()
	res := &prompt.ExtractionResult{
		ID:             o.newID(),
		Platform:       string(a.Platform),
		URL:            pageURL,
		ConversationID: a.ConversationID(pageURL),
		Mode:           mode,
	}
	log := o.logger.With("platform", a.Platform, "conversation_id", res.ConversationID)

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("extraction: panic, returning what was gathered", "panic", r)
			}
		}()
		if title, err := o.page.Title(ctx); err == nil {
			res.Title = title
		}
		var dom, captured []prompt.Prompt
		if pref != prompt.PreferKeylog {
			dom = o.scrapeDOM(ctx, a, log)
		}
		if pref != prompt.PreferDOM {
			captured = o.captured(ctx, a.Platform, res.ConversationID, start, log)
		}
		res.Prompts = Merge(pref, dom, captured)
		log.Debug("extraction: merged", "dom", len(dom), "captured", len(captured), "prompts", len(res.Prompts))
	}()
	if res.Prompts == nil {
		res.Prompts = []prompt.Prompt{}
	}
	res.ExtractedAt = prompt.Millis(o.now())

	if mode == prompt.ModeCompile {
		o.compile(ctx, res, opts, log)
	}

	o.latest.Set(res)
	if err := o.sink.Deliver(ctx, res); err != nil {
		log.Warn("extraction: delivery failed", "error", err)
	}
	log.Info("extraction: done", "mode", mode, "source", pref, "prompts", len(res.Prompts),
		"duration_ms", o.now().Sub(start).Milliseconds())
	return res, nil
}

// scrapeDOM loads the conversation history and scrapes it. Failures are
// logged and yield fewer prompts.
func (o *Orchestrator) scrapeDOM(ctx context.Context, a *platform.Adapter, log *slog.Logger) []prompt.Prompt {
	cfg := scroll.ConfigFor(a.Platform, o.speed)
	container := a.ScrollContainer(ctx, o.page)

	scrape := func(ctx context.Context) ([]prompt.Prompt, error) {
		doc, err := o.page.Document(ctx)
		if err != nil {
			return nil, err
		}
		return a.ScrapePrompts(doc), nil
	}

	if st, err := scroll.NewLoader(cfg, o.scrollFn...).Load(ctx, o.page, container); err != nil {
		log.Warn("extraction: scroll load failed, scraping current view", "error", err)
	} else {
		log.Debug("extraction: history loaded", "container", container,
			"descend", st.DescendSteps, "ascend", st.AscendSteps, "height", st.FinalHeight)
	}

	var (
		ps  []prompt.Prompt
		err error
	)
	if a.MultiSample {
		ps, err = scroll.NewSampler(cfg, o.scrollFn...).Sample(ctx, o.page, container, scrape)
	} else {
		ps, err = scrape(ctx)
	}
	if err != nil {
		log.Warn("extraction: scrape failed", "error", err)
		return nil
	}
	return ps
}

func (o *Orchestrator) captured(ctx context.Context, p platform.Platform, convID string, at time.Time, log *slog.Logger) []prompt.Prompt {
	if o.captures == nil {
		return nil
	}
	live := o.captures.Live(p, convID, at)
	persisted, err := o.captures.Persisted(ctx, p, convID, at)
	if err != nil {
		log.Warn("extraction: persisted captures unavailable", "error", err)
	}
	return Captured(live, persisted)
}

// compile attaches a summary. The local summary is published to the
// latest cell at once; a cloud summary replaces it if it wins the race.
func (o *Orchestrator) compile(ctx context.Context, res *prompt.ExtractionResult, opts compile.Options, log *slog.Logger) {
	if len(res.Prompts) == 0 {
		return
	}
	p := o.pipeline
	if p == nil {
		p = compile.NewPipeline(compile.Config{Logger: o.logger})
	}
	if opts.Platform == "" {
		opts.Platform = res.Platform
	}
	publish := func(s *prompt.SummaryResult) {
		interim := *res
		interim.Summary = s
		o.latest.Set(&interim)
	}
	summary, err := p.Enhance(ctx, res.Prompts, opts, publish)
	if err != nil {
		log.Warn("extraction: compile failed", "error", err)
		return
	}
	res.Summary = summary
}
