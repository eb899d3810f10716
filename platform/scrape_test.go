package platform

import (
	"strings"
	"testing"

	"github.com/hazyhaar/promptcap/prompt"
)

func contents(ps []prompt.Prompt) []string { return prompt.Contents(ps) }

func TestScrape_CleanCaptureThreeMessages(t *testing.T) {
	doc := Parse(`<main>
	  <div data-message-author-role="user"><div class="whitespace-pre-wrap">a</div></div>
	  <div data-message-author-role="assistant"><div class="markdown">answer a</div></div>
	  <div data-message-author-role="user"><div class="whitespace-pre-wrap">b</div></div>
	  <div data-message-author-role="user"><div class="whitespace-pre-wrap">c</div></div>
	  <form><textarea>draft not sent</textarea></form>
	</main>`)
	a, _ := Lookup(ChatGPT)
	got := a.ScrapePrompts(doc)
	want := []string{"a", "b", "c"}
	if strings.Join(contents(got), "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", contents(got), want)
	}
	for i, p := range got {
		if p.Index != i || p.Source != prompt.SourceDOM || p.Platform != "chatgpt" {
			t.Errorf("[%d] unexpected metadata %+v", i, p)
		}
	}
}

func TestScrape_LeafContainersOnly(t *testing.T) {
	// The outer user container and the inner text node both match; only the
	// inner one may produce a prompt.
	doc := Parse(`<div data-message-author-role="user">
	  <h5 class="sr-only">You said:</h5>
	  <div class="whitespace-pre-wrap">Fix the login bug</div>
	</div>`)
	a, _ := Lookup(ChatGPT)
	got := a.ScrapePrompts(doc)
	if len(got) != 1 || got[0].Content != "Fix the login bug" {
		t.Fatalf("got %q", contents(got))
	}
}

func TestScrape_DedupAndNoise(t *testing.T) {
	doc := Parse(`<div>
	  <div data-testid="user-message">Explain   closures</div>
	  <div data-testid="user-message">explain closures</div>
	  <div data-testid="user-message">Copy</div>
	  <div data-testid="user-message">  </div>
	  <div data-testid="user-message"><span class="sr-only">You said:</span> write tests<button>Edit</button></div>
	</div>`)
	a, _ := Lookup(Claude)
	got := a.ScrapePrompts(doc)
	want := []string{"Explain closures", "write tests"}
	if strings.Join(contents(got), "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", contents(got), want)
	}
}

func TestScrape_KeepsPromptStartingWithLabelWords(t *testing.T) {
	doc := Parse(`<div>
	  <div data-testid="user-message">You said the build passed, why is CI red?</div>
	</div>`)
	a, _ := Lookup(Claude)
	got := a.ScrapePrompts(doc)
	if len(got) != 1 || got[0].Content != "You said the build passed, why is CI red?" {
		t.Fatalf("got %q", contents(got))
	}
}

func TestScrape_ExcludesComposerAndAssistant(t *testing.T) {
	doc := Parse(`<div>
	  <div data-role="user">real prompt</div>
	  <div data-role="assistant"><div data-role="user">quoted inside answer</div></div>
	  <div contenteditable="true"><div class="user-message">typing…</div></div>
	</div>`)
	a, _ := Lookup(Generic)
	got := a.ScrapePrompts(doc)
	if len(got) != 1 || got[0].Content != "real prompt" {
		t.Fatalf("got %q", contents(got))
	}
}

func TestScrape_ToleratesBadSelectorsAndEmptyDoc(t *testing.T) {
	a := &Adapter{
		Platform: Generic,
		Prompts:  []string{"div[", "p.msg"},
		Exclude:  []string{">>"},
	}
	got := a.ScrapePrompts(Parse(`<p class="msg">still found</p>`))
	if len(got) != 1 {
		t.Fatalf("got %q", contents(got))
	}
	if got := a.ScrapePrompts(nil); got != nil {
		t.Fatalf("nil doc: got %v", got)
	}
	if got := a.ScrapePrompts(Parse("")); len(got) != 0 {
		t.Fatalf("empty doc: got %v", got)
	}
}

func TestScrape_RichTextKeepsCode(t *testing.T) {
	doc := Parse(`<div data-message-role="user"><div class="prose">
	  <p>Refactor this:</p>
	  <pre><code>func main() {}</code></pre>
	</div></div>`)
	a, _ := Lookup(Lovable)
	got := a.ScrapePrompts(doc)
	if len(got) != 1 {
		t.Fatalf("got %d prompts", len(got))
	}
	if !strings.Contains(got[0].Content, "Refactor this:") || !strings.Contains(got[0].Content, "func main() {}") {
		t.Fatalf("content lost: %q", got[0].Content)
	}
}

func TestNodeText_SkipsHiddenAndScripts(t *testing.T) {
	doc := Parse(`<div id="x">Hello<script>evil()</script> <span aria-hidden="true">icon</span>world&#8203;</div>`)
	n, _ := QueryAll(doc, "#x")
	if got := NodeText(n[0]); got != "Hello world" {
		t.Fatalf("got %q", got)
	}
}
