package platform

import (
	"testing"
)

const selectorDoc = `<html><body>
<main id="chat">
  <div class="turn user" data-role="user"><p>first</p></div>
  <div class="turn bot" data-role="assistant"><p>reply</p></div>
  <section><div class="turn user" data-role="user" data-testid="user-message"><p>second</p></div></section>
  <span data-kind="group/query big">third</span>
</main>
</body></html>`

func TestSelector_Matching(t *testing.T) {
	doc := Parse(selectorDoc)
	cases := []struct {
		sel  string
		want int
	}{
		{"div", 3},
		{".turn", 3},
		{"div.turn.user", 2},
		{"#chat > div", 2},
		{"#chat p", 3},
		{"main > section > div.user p", 1},
		{"[data-role=user]", 2},
		{`[data-role="assistant"]`, 1},
		{"[data-testid]", 1},
		{"[data-kind*=query]", 1},
		{"[data-kind^=group/]", 1},
		{"[data-kind$=big]", 1},
		{"[data-kind~=big]", 1},
		{"[data-kind~=bi]", 0},
		{"span, [data-testid=user-message]", 2},
		{"*[data-role=user]", 2},
		{"DIV.turn", 3},
	}
	for _, c := range cases {
		got, err := QueryAll(doc, c.sel)
		if err != nil {
			t.Errorf("%q: %v", c.sel, err)
			continue
		}
		if len(got) != c.want {
			t.Errorf("%q: got %d matches, want %d", c.sel, len(got), c.want)
		}
	}
}

func TestSelector_Malformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"div[",
		"div >",
		".",
		"#",
		"[=x]",
		"div:hover",
		"a,,b",
		`[data-x="open]`,
	} {
		if _, err := Compile(bad); err == nil {
			t.Errorf("Compile(%q): expected error", bad)
		}
	}
}

func TestSelector_DocumentOrderNoDuplicates(t *testing.T) {
	doc := Parse(selectorDoc)
	got, err := QueryAll(doc, "[data-testid=user-message], div.user")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if NodeText(got[0]) != "first" || NodeText(got[1]) != "second" {
		t.Fatalf("order: got %q, %q", NodeText(got[0]), NodeText(got[1]))
	}
}
