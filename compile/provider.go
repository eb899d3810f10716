package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/hazyhaar/promptcap/connectivity"
)

const defaultMaxTokens = 1024

// Resilience wraps a provider call the same way connectivity.Fetcher wraps
// an HTTP post: breaker around retry around a per-attempt timeout.
type Resilience struct {
	Breaker *connectivity.CircuitBreaker
	Policy  connectivity.RetryPolicy
	Timeout time.Duration
	Logger  *slog.Logger
}

func (r Resilience) run(ctx context.Context, service string, fn func(ctx context.Context) error) error {
	if r.Timeout <= 0 {
		r.Timeout = connectivity.DefaultFetchTimeout
	}
	return r.Breaker.Execute(ctx, func(ctx context.Context) error {
		return connectivity.RetryWithBackoff(ctx, r.Policy, r.Logger, func(ctx context.Context) error {
			tctx, cancel := context.WithTimeout(ctx, r.Timeout)
			defer cancel()
			err := fn(tctx)
			if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
				return &connectivity.ErrTimeout{Service: service, After: r.Timeout}
			}
			return err
		})
	})
}

// statusFrom converts an SDK API error into a *connectivity.StatusError so
// retry classification sees its HTTP status.
func statusFrom(err error) error {
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return &connectivity.StatusError{Status: ae.StatusCode, Message: ae.Error()}
	}
	var oe *openai.Error
	if errors.As(err, &oe) {
		return &connectivity.StatusError{Status: oe.StatusCode, Message: oe.Error()}
	}
	return err
}

// systemPrompt describes the consolidation task for a direct provider call.
func systemPrompt(o RequestOptions) string {
	var b strings.Builder
	b.WriteString("You consolidate the prompts a user sent to an AI assistant into one instruction that captures their full intent. ")
	b.WriteString("Merge duplicates, keep every concrete requirement, drop pleasantries. ")
	fmt.Fprintf(&b, "Write in a %s tone as a %s. ", o.Tone, o.Format)
	if o.Mode == "detailed" {
		b.WriteString("Preserve details such as names, numbers and constraints verbatim. ")
	}
	if o.IncludeAI {
		b.WriteString("Include relevant context from the assistant's side where the prompts depend on it. ")
	}
	b.WriteString("Reply with the consolidated text only.")
	return b.String()
}

func userContent(req Request) string {
	if req.AdditionalInfo == "" {
		return req.Content
	}
	return req.Content + "\n\nAdditional context: " + req.AdditionalInfo
}

// AnthropicProvider calls the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	key    string
	model  string
	res    Resilience
	opts   []anthropicopt.RequestOption
}

// NewAnthropicProvider returns a provider for key. SDK-level retries are
// disabled; res supplies them.
func NewAnthropicProvider(key, model string, res Resilience, opts ...anthropicopt.RequestOption) *AnthropicProvider {
	if res.Breaker == nil {
		res.Breaker = connectivity.NewCircuitBreaker("anthropic")
	}
	all := append([]anthropicopt.RequestOption{anthropicopt.WithAPIKey(key), anthropicopt.WithMaxRetries(0)}, opts...)
	return &AnthropicProvider{
		client: anthropic.NewClient(all...),
		key:    key,
		model:  model,
		res:    res,
		opts:   opts,
	}
}

// Name implements Cloud.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// HasKey implements Direct.
func (p *AnthropicProvider) HasKey() bool { return p.key != "" }

// WithAPIKey implements Direct.
func (p *AnthropicProvider) WithAPIKey(key string) Direct {
	return NewAnthropicProvider(key, p.model, p.res, p.opts...)
}

// Compile implements Cloud.
func (p *AnthropicProvider) Compile(ctx context.Context, req Request) (Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(defaultMaxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(req.Options)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent(req))),
		},
	}

	var summary string
	err := p.res.run(ctx, p.Name(), func(ctx context.Context) error {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return statusFrom(err)
		}
		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		summary = b.String()
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("compile: anthropic: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return Response{}, ErrEmptySummary
	}
	return Response{Summary: strings.TrimSpace(summary), Provider: p.Name(), Model: model}, nil
}

// OpenAIProvider calls the Chat Completions API.
type OpenAIProvider struct {
	client openai.Client
	key    string
	model  string
	res    Resilience
	opts   []openaiopt.RequestOption
}

// NewOpenAIProvider returns a provider for key. SDK-level retries are
// disabled; res supplies them.
func NewOpenAIProvider(key, model string, res Resilience, opts ...openaiopt.RequestOption) *OpenAIProvider {
	if res.Breaker == nil {
		res.Breaker = connectivity.NewCircuitBreaker("openai")
	}
	all := append([]openaiopt.RequestOption{openaiopt.WithAPIKey(key), openaiopt.WithMaxRetries(0)}, opts...)
	return &OpenAIProvider{
		client: openai.NewClient(all...),
		key:    key,
		model:  model,
		res:    res,
		opts:   opts,
	}
}

// Name implements Cloud.
func (p *OpenAIProvider) Name() string { return "openai" }

// HasKey implements Direct.
func (p *OpenAIProvider) HasKey() bool { return p.key != "" }

// WithAPIKey implements Direct.
func (p *OpenAIProvider) WithAPIKey(key string) Direct {
	return NewOpenAIProvider(key, p.model, p.res, p.opts...)
}

// Compile implements Cloud.
func (p *OpenAIProvider) Compile(ctx context.Context, req Request) (Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req.Options)),
			openai.UserMessage(userContent(req)),
		},
		MaxCompletionTokens: openai.Int(defaultMaxTokens),
	}

	var summary string
	err := p.res.run(ctx, p.Name(), func(ctx context.Context) error {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return statusFrom(err)
		}
		if len(resp.Choices) > 0 {
			summary = resp.Choices[0].Message.Content
		}
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("compile: openai: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return Response{}, ErrEmptySummary
	}
	return Response{Summary: strings.TrimSpace(summary), Provider: p.Name(), Model: model}, nil
}
