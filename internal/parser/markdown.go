package parser

import (
	"bytes"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// goldmark closes an unterminated fence at end of input; a reference
	// page with one is truncated, so reject it.
	if line, open := unclosedFence(src); open {
		return nil, &MalformedMarkupError{
			Path:     filepath.ToSlash(filename),
			Line:     line,
			Expected: "closing code fence",
			Found:    "end of document",
		}
	}

	md := goldmark.New(goldmark.WithExtensions(extension.DefinitionList))
	root := md.Parser().Parse(text.NewReader(src))

	b := &mdBuilder{src: src, starts: lineStarts(src)}
	doc := &doctree.Document{}

	// A leading h1 is the document title.
	n := root.FirstChild()
	if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
		doc.Title = doctree.PlainText(b.inlines(h, b.lineOf(h)))
		n = n.NextSibling()
	}
	for ; n != nil; n = n.NextSibling() {
		doc.Blocks = append(doc.Blocks, b.blocks(n)...)
	}

	return finish(doc, "markdown", filename), nil
}

type mdBuilder struct {
	src    []byte
	starts []int
}

func (b *mdBuilder) blocks(n ast.Node) []doctree.Block {
	line := b.lineOf(n)
	switch node := n.(type) {
	case *ast.Heading:
		spans := doctree.TrimSpans(b.inlines(node, line))
		return []doctree.Block{&doctree.Heading{Level: node.Level, Spans: spans, Line: line}}

	case *ast.Paragraph, *ast.TextBlock:
		spans := doctree.TrimSpans(b.inlines(node, line))
		if len(spans) == 0 {
			return nil
		}
		return []doctree.Block{paragraphBlock(spans, line)}

	case *ast.FencedCodeBlock:
		// Lines() starts after the opening fence.
		if line > 1 {
			line--
		}
		return []doctree.Block{&doctree.CodeSample{
			Lang:    string(node.Language(b.src)),
			Literal: b.literal(node),
			Line:    line,
		}}

	case *ast.CodeBlock:
		return []doctree.Block{&doctree.CodeSample{Literal: b.literal(node), Line: line}}

	case *ast.List:
		list := &doctree.List{Ordered: node.IsOrdered(), Line: line}
		b.listItems(node, 1, list)
		return []doctree.Block{list}

	case *east.DefinitionList:
		return []doctree.Block{b.definitionList(node, line)}

	case *ast.Blockquote:
		var out []doctree.Block
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, b.blocks(c)...)
		}
		return out
	}
	// Thematic breaks and raw HTML blocks carry no reference content.
	return nil
}

func (b *mdBuilder) listItems(list *ast.List, level int, out *doctree.List) {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var spans []doctree.Span
		var nested []*ast.List
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.List:
				nested = append(nested, c)
			case *ast.Paragraph, *ast.TextBlock:
				if len(spans) > 0 {
					spans = append(spans, doctree.Plain(" "))
				}
				spans = append(spans, b.inlines(c, b.lineOf(c))...)
			}
		}
		out.Items = append(out.Items, doctree.ListItem{Level: level, Spans: doctree.TrimSpans(spans)})
		for _, l := range nested {
			b.listItems(l, level+1, out)
		}
	}
}

func (b *mdBuilder) definitionList(dl *east.DefinitionList, line int) *doctree.DefinitionList {
	out := &doctree.DefinitionList{Line: line}
	for c := dl.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *east.DefinitionTerm:
			term := doctree.TrimSpans(b.inlines(c, b.lineOf(c)))
			out.Entries = append(out.Entries, doctree.Definition{Term: term})
		case *east.DefinitionDescription:
			if len(out.Entries) == 0 {
				continue
			}
			e := &out.Entries[len(out.Entries)-1]
			for d := c.FirstChild(); d != nil; d = d.NextSibling() {
				if len(e.Definition) > 0 {
					e.Definition = append(e.Definition, doctree.Plain(" "))
				}
				e.Definition = append(e.Definition, b.inlines(d, b.lineOf(d))...)
			}
			e.Definition = doctree.TrimSpans(e.Definition)
		}
	}
	return out
}

func (b *mdBuilder) inlines(n ast.Node, line int) []doctree.Span {
	var out []doctree.Span
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			out = append(out, doctree.Plain(string(node.Value(b.src))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				out = append(out, doctree.Plain(" "))
			}
		case *ast.String:
			out = append(out, doctree.Plain(string(node.Value)))
		case *ast.CodeSpan:
			out = append(out, doctree.Span{Style: doctree.StyleCode, Text: b.rawText(node)})
		case *ast.Emphasis:
			style := doctree.StyleEmphasis
			if node.Level >= 2 {
				style = doctree.StyleStrong
			}
			out = append(out, doctree.Span{Style: style, Children: b.inlines(node, line)})
		case *ast.Link:
			l := doctree.NewLink(string(node.Destination), doctree.TrimSpans(b.inlines(node, line)), line)
			out = append(out, linkSpan(l))
		case *ast.AutoLink:
			label := []doctree.Span{doctree.Plain(string(node.Label(b.src)))}
			out = append(out, linkSpan(doctree.NewLink(string(node.URL(b.src)), label, line)))
		case *ast.RawHTML:
		default:
			// Images contribute their alt text; other inlines their children.
			out = append(out, b.inlines(c, line)...)
		}
	}
	return doctree.MergeText(out)
}

func (b *mdBuilder) rawText(n ast.Node) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Value(b.src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}

// literal returns a code block's content without its final newline.
func (b *mdBuilder) literal(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(b.src))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// lineOf returns the 1-based source line of the first text under n.
func (b *mdBuilder) lineOf(n ast.Node) int {
	for c := n; c != nil; c = c.FirstChild() {
		if c.Type() == ast.TypeBlock && c.Lines().Len() > 0 {
			return b.line(c.Lines().At(0).Start)
		}
		if t, ok := c.(*ast.Text); ok {
			return b.line(t.Segment.Start)
		}
	}
	return 0
}

func (b *mdBuilder) line(offset int) int {
	return sort.SearchInts(b.starts, offset+1)
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// unclosedFence reports the line of a code fence that is never closed.
func unclosedFence(src []byte) (int, bool) {
	var fenceChar byte
	fenceLen, openLine := 0, 0
	for i, raw := range strings.Split(string(src), "\n") {
		line := strings.TrimRight(raw, "\r")
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if indent > 3 {
			continue
		}
		c, n := fenceRun(line[indent:])
		if n < 3 {
			continue
		}
		rest := line[indent+n:]
		if fenceLen == 0 {
			if c == '`' && strings.ContainsRune(rest, '`') {
				continue
			}
			fenceChar, fenceLen, openLine = c, n, i+1
		} else if c == fenceChar && n >= fenceLen && strings.TrimSpace(rest) == "" {
			fenceLen = 0
		}
	}
	return openLine, fenceLen > 0
}

func fenceRun(s string) (byte, int) {
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return 0, 0
	}
	c := s[0]
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return c, n
}
