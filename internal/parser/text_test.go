package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/refdoc/internal/doctree"
)

func TestTextParser_Paragraphs(t *testing.T) {
	input := "First paragraph line one.\nLine two.\n\nSecond paragraph.\n"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "test.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "test" {
		t.Errorf("expected title %q, got %q", "test", doc.Title)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Blocks))
	}
	if got := doctree.BlockText(doc.Blocks[0]); got != "First paragraph line one. Line two." {
		t.Errorf("unexpected first paragraph %q", got)
	}
}

func TestTextParser_RenderedLayout(t *testing.T) {
	input := "==========\n" +
		"class Str\n" +
		"==========\n" +
		"String of characters\n" +
		"\n" +
		"Methods\n" +
		"=======\n" +
		"\n" +
		"method chars\n" +
		"------------\n" +
		"\n" +
		"````raku\n" +
		"say ```x```;\n" +
		"\n" +
		"````\n" +
		"\n" +
		"* one\n" +
		"  * nested\n" +
		"* two\n" +
		"\n" +
		"1. first\n" +
		"2. second\n" +
		"\n" +
		"chars\n" +
		": Number of characters.\n" +
		"codes\n" +
		":\n"

	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "Str.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "class Str" || doc.Subtitle != "String of characters" {
		t.Errorf("unexpected title %q / subtitle %q", doc.Title, doc.Subtitle)
	}

	want := []string{"heading", "heading", "code", "list", "list", "definition_list"}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(doc.Blocks))
	}
	for i, k := range want {
		if got := doc.Blocks[i].Kind(); got != k {
			t.Errorf("block %d: expected %s, got %s", i, k, got)
		}
	}

	if h := doc.Blocks[1].(*doctree.Heading); h.Level != 2 || h.Text() != "method chars" {
		t.Errorf("unexpected heading %+v", h)
	}

	code := doc.Blocks[2].(*doctree.CodeSample)
	if code.Lang != "raku" || code.Literal != "say ```x```;\n" {
		t.Errorf("unexpected code sample %q (lang %q)", code.Literal, code.Lang)
	}

	nested := doc.Blocks[3].(*doctree.List)
	if len(nested.Items) != 3 || nested.Items[1].Level != 2 || nested.Ordered {
		t.Errorf("unexpected list %+v", nested)
	}
	if ordered := doc.Blocks[4].(*doctree.List); !ordered.Ordered || len(ordered.Items) != 2 {
		t.Errorf("unexpected ordered list %+v", ordered)
	}

	dl := doc.Blocks[5].(*doctree.DefinitionList)
	if len(dl.Entries) != 2 || len(dl.Entries[1].Definition) != 0 {
		t.Errorf("unexpected definitions %+v", dl)
	}
}

func TestTextParser_UnterminatedFence(t *testing.T) {
	_, err := (&TextParser{}).Parse(strings.NewReader("Intro\n\n```\ncode\n"), "x.txt")
	var mm *MalformedMarkupError
	if !errors.As(err, &mm) {
		t.Fatalf("expected MalformedMarkupError, got %v", err)
	}
	if mm.Line != 3 {
		t.Errorf("expected line 3, got %d", mm.Line)
	}
}

func TestUnderlineLevel(t *testing.T) {
	tests := []struct {
		text, under string
		want        int
	}{
		{"Title", "=====", 1},
		{"Title", "-----", 2},
		{"Title", "~~~~~~~", 3},
		{"Title", "^^^", 0},
		{"Title", "=-===", 0},
		{"* item", "------", 0},
	}
	for _, tt := range tests {
		if got := underlineLevel(tt.text, tt.under); got != tt.want {
			t.Errorf("underlineLevel(%q, %q) = %d, want %d", tt.text, tt.under, got, tt.want)
		}
	}
}
