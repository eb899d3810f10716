package platform

import "regexp"

// composer matches inputs and editors that hold unsent text.
var composer = []string{
	"textarea",
	"input",
	"form",
	"[contenteditable=true]",
	"[role=textbox]",
	"[data-testid=composer]",
}

func withComposer(extra ...string) []string {
	return append(append([]string(nil), composer...), extra...)
}

var registry = []*Adapter{
	{
		Platform: ChatGPT,
		Name:     "ChatGPT",
		Hosts:    []string{"chatgpt.com", "chat.openai.com"},
		Prompts: []string{
			"[data-message-author-role=user] .whitespace-pre-wrap",
			"[data-message-author-role=user]",
		},
		Exclude:      withComposer("[data-message-author-role=assistant]"),
		Scroll:       []string{"main div[class*=overflow-y-auto]", "[data-testid=conversation-turns]"},
		Conversation: regexp.MustCompile(`/c/([A-Za-z0-9-]+)`),
	},
	{
		Platform: Claude,
		Name:     "Claude",
		Hosts:    []string{"claude.ai"},
		Prompts: []string{
			"[data-testid=user-message]",
			"div.font-user-message",
		},
		Exclude:      withComposer("div.font-claude-message", "[data-is-streaming]"),
		Scroll:       []string{"div[class*=overflow-y-scroll]", "main div[class*=overflow-y-auto]"},
		Conversation: regexp.MustCompile(`/chat/([A-Za-z0-9-]+)`),
	},
	{
		Platform: Gemini,
		Name:     "Gemini",
		Hosts:    []string{"gemini.google.com"},
		Prompts: []string{
			"user-query .query-text",
			"user-query-content .user-query-bubble-with-background",
			"user-query",
		},
		Exclude:      withComposer("model-response", "rich-textarea"),
		Scroll:       []string{"infinite-scroller.chat-history", "div.chat-history-scroll-container"},
		Conversation: regexp.MustCompile(`/app/([A-Za-z0-9]+)`),
	},
	{
		Platform: Perplexity,
		Name:     "Perplexity",
		Hosts:    []string{"perplexity.ai"},
		Prompts: []string{
			"[data-testid=user-query]",
			"h1[class*=group/query]",
			"div[class*=group/query] span",
		},
		Exclude:      withComposer("div.prose", "[data-testid=answer]"),
		Scroll:       []string{"div.scrollable-container", "main div[class*=overflow-auto]"},
		Conversation: regexp.MustCompile(`/search/([A-Za-z0-9._-]+)`),
		MultiSample:  true,
	},
	{
		Platform: DeepSeek,
		Name:     "DeepSeek",
		Hosts:    []string{"chat.deepseek.com"},
		Prompts: []string{
			"div.fbb737a4",
			"[data-role=user] .ds-markdown",
		},
		Exclude:      withComposer("div.ds-markdown--block", "[data-role=assistant]"),
		Scroll:       []string{"div.scrollable", "div[class*=ds-scroll-area]"},
		Conversation: regexp.MustCompile(`/s/([A-Za-z0-9-]+)`),
	},
	{
		Platform: Lovable,
		Name:     "Lovable",
		Hosts:    []string{"lovable.dev"},
		Prompts: []string{
			"[data-message-role=user] .prose",
			"[data-message-role=user]",
		},
		Exclude:      withComposer("[data-message-role=assistant]"),
		Scroll:       []string{"[data-testid=chat-scroll]", "div[class*=ChatMessages]"},
		Conversation: regexp.MustCompile(`/projects/([A-Za-z0-9-]+)`),
		RichText:     true,
	},
	{
		Platform: Bolt,
		Name:     "Bolt",
		Hosts:    []string{"bolt.new"},
		Prompts: []string{
			"[data-testid=user-message]",
			"div[class*=UserMessage]",
		},
		Exclude:      withComposer("div[class*=AssistantMessage]"),
		Scroll:       []string{"div[class*=Chat] div[class*=overflow-y-auto]"},
		Conversation: regexp.MustCompile(`/~/([A-Za-z0-9-]+)`),
		RichText:     true,
	},
	{
		Platform: Cursor,
		Name:     "Cursor",
		Hosts:    []string{"cursor.com"},
		Prompts: []string{
			"[data-message-role=human]",
			"div[class*=human-message]",
		},
		Exclude:      withComposer("[data-message-role=ai]"),
		Scroll:       []string{"div[class*=conversation-scroll]"},
		Conversation: regexp.MustCompile(`/agents/([A-Za-z0-9-]+)`),
		RichText:     true,
	},
	{
		Platform: MetaAI,
		Name:     "Meta AI",
		Hosts:    []string{"meta.ai"},
		Prompts: []string{
			"[data-testid=user-message]",
			"div[class*=user-message] [dir=auto]",
		},
		Exclude:      withComposer("[data-testid=assistant-message]"),
		Scroll:       []string{"div[role=main] div[class*=scroll]"},
		Conversation: regexp.MustCompile(`/c/([A-Za-z0-9-]+)`),
	},
	{
		Platform: Generic,
		Name:     "Generic",
		Prompts: []string{
			"[data-message-author-role=user]",
			"[data-role=user]",
			"[data-author=user]",
			"[data-testid=user-message]",
			"[class*=user-message]",
			"[class*=human-message]",
		},
		Exclude: withComposer(
			"[data-message-author-role=assistant]",
			"[data-role=assistant]",
			"[class*=assistant-message]",
		),
	},
}

// Registry returns the adapters in detection priority order. The generic
// adapter is last.
func Registry() []*Adapter { return registry }
