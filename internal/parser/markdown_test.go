package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/refdoc/internal/doctree"
)

func TestMarkdownParser_Blocks(t *testing.T) {
	input := "# Title\n" +
		"\n" +
		"Intro text with `code` and [Str](/type/Str).\n" +
		"\n" +
		"## Section A\n" +
		"\n" +
		"```raku\n" +
		"say 1;\n" +
		"```\n" +
		"\n" +
		"- one\n" +
		"  - nested\n" +
		"- two\n" +
		"\n" +
		"Term\n" +
		": Definition text.\n" +
		"\n" +
		"[Int](/type/Int)\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Title" {
		t.Errorf("expected title %q, got %q", "Title", doc.Title)
	}
	if doc.Format != "markdown" {
		t.Errorf("expected format markdown, got %q", doc.Format)
	}

	want := []string{"paragraph", "heading", "code", "list", "definition_list", "link"}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(doc.Blocks))
	}
	for i, k := range want {
		if got := doc.Blocks[i].Kind(); got != k {
			t.Errorf("block %d: expected %s, got %s", i, k, got)
		}
	}

	para := doc.Blocks[0].(*doctree.Paragraph)
	if got := doctree.PlainText(para.Spans); got != "Intro text with code and Str." {
		t.Errorf("unexpected paragraph text %q", got)
	}
	if para.Line != 3 {
		t.Errorf("expected paragraph on line 3, got %d", para.Line)
	}

	h := doc.Blocks[1].(*doctree.Heading)
	if h.Level != 2 || h.Text() != "Section A" || h.Anchor != "Section_A" || h.Line != 5 {
		t.Errorf("unexpected heading %+v", h)
	}

	code := doc.Blocks[2].(*doctree.CodeSample)
	if code.Lang != "raku" || code.Literal != "say 1;" {
		t.Errorf("unexpected code sample %+v", code)
	}
	if code.Line != 7 {
		t.Errorf("expected code on line 7, got %d", code.Line)
	}

	list := doc.Blocks[3].(*doctree.List)
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 list items, got %d", len(list.Items))
	}
	if list.Items[1].Level != 2 || doctree.PlainText(list.Items[1].Spans) != "nested" {
		t.Errorf("unexpected nested item %+v", list.Items[1])
	}

	dl := doc.Blocks[4].(*doctree.DefinitionList)
	if len(dl.Entries) != 1 || doctree.PlainText(dl.Entries[0].Definition) != "Definition text." {
		t.Errorf("unexpected definition list %+v", dl)
	}

	links := doc.Links()
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].Target != "/type/Str" || links[1].Target != "/type/Int" {
		t.Errorf("unexpected link targets %q, %q", links[0].Target, links[1].Target)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := "Just some plain text.\n\nAnother paragraph.\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "notes" {
		t.Errorf("expected title from filename, got %q", doc.Title)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Blocks))
	}
}

func TestMarkdownParser_UnclosedFence(t *testing.T) {
	input := "# T\n\n```go\nfunc x() {}\n"
	p := &MarkdownParser{}
	_, err := p.Parse(strings.NewReader(input), "bad.md")

	var mm *MalformedMarkupError
	if !errors.As(err, &mm) {
		t.Fatalf("expected MalformedMarkupError, got %v", err)
	}
	if mm.Line != 3 {
		t.Errorf("expected line 3, got %d", mm.Line)
	}
}

func TestUnclosedFence(t *testing.T) {
	tests := []struct {
		name string
		src  string
		open bool
	}{
		{"closed", "```\nx\n```\n", false},
		{"tilde", "~~~~\nx\n~~~\n", true},
		{"longer close", "```\nx\n`````\n", false},
		{"inline backticks", "``` not a fence ` here\n", false},
		{"indented code", "    ```\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, open := unclosedFence([]byte(tt.src)); open != tt.open {
				t.Errorf("expected open=%v, got %v", tt.open, open)
			}
		})
	}
}
