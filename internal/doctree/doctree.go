// Package doctree is the in-memory model of a parsed reference document:
// an ordered sequence of blocks with inline spans and cross-references.
package doctree

import (
	"strings"

	"github.com/dgallion1/refdoc/internal/diag"
)

// Document is the root of a parsed document.
type Document struct {
	ID       string            // Canonical identifier, unique within a corpus
	Path     string            // Source path relative to the corpus root, slash separated
	Title    string            // From =TITLE, a leading h1, <title>, or the file name
	Subtitle string            // Optional
	Format   string            // Source format: pod, markdown, html, text, docx, pdf
	Blocks   []Block           // Top-level blocks in source order
	Warnings []diag.Diagnostic // Non-fatal parse findings
}

// Block is one of Heading, Paragraph, CodeSample, DefinitionList, List or LinkBlock.
type Block interface {
	Kind() string
	SourceLine() int
}

// Heading is a section heading. Level 1 is the outermost.
type Heading struct {
	Level  int    `json:"level"`
	Spans  []Span `json:"spans"`
	Anchor string `json:"anchor"`
	Line   int    `json:"line,omitempty"`
}

// Paragraph is a run of inline text.
type Paragraph struct {
	Spans []Span `json:"spans"`
	Line  int    `json:"line,omitempty"`
}

// CodeSample is literal text reproduced verbatim by every renderer.
type CodeSample struct {
	Lang    string `json:"lang,omitempty"`
	Literal string `json:"literal"`
	Line    int    `json:"line,omitempty"`
}

// DefinitionList groups term/definition pairs.
type DefinitionList struct {
	Entries []Definition `json:"entries"`
	Line    int          `json:"line,omitempty"`
}

// Definition is one entry of a DefinitionList.
type Definition struct {
	Term       []Span `json:"term"`
	Definition []Span `json:"definition"`
}

// List is a sequence of items; Level on each item records nesting.
type List struct {
	Ordered bool       `json:"ordered,omitempty"`
	Items   []ListItem `json:"items"`
	Line    int        `json:"line,omitempty"`
}

// ListItem is one entry of a List. Level 1 is the outermost.
type ListItem struct {
	Level int    `json:"level"`
	Spans []Span `json:"spans"`
}

// LinkBlock is a paragraph that consists of a single cross-reference.
type LinkBlock struct {
	Link *Link `json:"link"`
	Line int   `json:"line,omitempty"`
}

func (*Heading) Kind() string        { return "heading" }
func (*Paragraph) Kind() string      { return "paragraph" }
func (*CodeSample) Kind() string     { return "code" }
func (*DefinitionList) Kind() string { return "definition_list" }
func (*List) Kind() string           { return "list" }
func (*LinkBlock) Kind() string      { return "link" }

func (b *Heading) SourceLine() int        { return b.Line }
func (b *Paragraph) SourceLine() int      { return b.Line }
func (b *CodeSample) SourceLine() int     { return b.Line }
func (b *DefinitionList) SourceLine() int { return b.Line }
func (b *List) SourceLine() int           { return b.Line }
func (b *LinkBlock) SourceLine() int      { return b.Line }

// Text returns the heading's plain text.
func (b *Heading) Text() string { return PlainText(b.Spans) }

// Headings returns the document's headings in source order.
func (d *Document) Headings() []*Heading {
	var out []*Heading
	for _, b := range d.Blocks {
		if h, ok := b.(*Heading); ok {
			out = append(out, h)
		}
	}
	return out
}

// Links returns every cross-reference in the document, in source order,
// including links nested in inline spans.
func (d *Document) Links() []*Link {
	var out []*Link
	var walk func(spans []Span)
	walk = func(spans []Span) {
		for i := range spans {
			if spans[i].Link != nil {
				out = append(out, spans[i].Link)
			}
			walk(spans[i].Children)
		}
	}
	for _, b := range d.Blocks {
		switch b := b.(type) {
		case *Heading:
			walk(b.Spans)
		case *Paragraph:
			walk(b.Spans)
		case *DefinitionList:
			for _, e := range b.Entries {
				walk(e.Term)
				walk(e.Definition)
			}
		case *List:
			for _, it := range b.Items {
				walk(it.Spans)
			}
		case *LinkBlock:
			out = append(out, b.Link)
			walk(b.Link.Label)
		}
	}
	return out
}

// BlockText returns the plain-text fallback of any block.
func BlockText(b Block) string {
	switch b := b.(type) {
	case *Heading:
		return PlainText(b.Spans)
	case *Paragraph:
		return PlainText(b.Spans)
	case *CodeSample:
		return b.Literal
	case *DefinitionList:
		parts := make([]string, 0, len(b.Entries))
		for _, e := range b.Entries {
			parts = append(parts, PlainText(e.Term)+": "+PlainText(e.Definition))
		}
		return strings.Join(parts, "\n")
	case *List:
		parts := make([]string, 0, len(b.Items))
		for _, it := range b.Items {
			parts = append(parts, PlainText(it.Spans))
		}
		return strings.Join(parts, "\n")
	case *LinkBlock:
		return b.Link.LabelText()
	}
	return ""
}
