package render

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/parser"
)

// TextTransform draws one block as plaintext lines, without the blank line
// that separates blocks.
type TextTransform func(p *TextPage, b doctree.Block) string

// TextRenderer renders documents in the plaintext layout that TextParser
// reads back: setext headings, fenced code, "* " items and ": " definitions.
type TextRenderer struct {
	opts       Options
	transforms map[string]TextTransform
}

// NewText returns a plaintext renderer with the default transforms installed.
func NewText(opts Options) *TextRenderer {
	r := &TextRenderer{opts: opts, transforms: make(map[string]TextTransform)}
	r.Handle("heading", textHeading)
	r.Handle("paragraph", textParagraph)
	r.Handle("code", textCode)
	r.Handle("definition_list", textDefinitions)
	r.Handle("list", textList)
	r.Handle("link", textLinkBlock)
	return r
}

// Handle installs the transform for a block kind, replacing any previous
// one. It must not be called while rendering.
func (r *TextRenderer) Handle(kind string, fn TextTransform) {
	r.transforms[kind] = fn
}

func (r *TextRenderer) Extension() string { return ".txt" }

// TextPage is the per-document state handed to transforms.
type TextPage struct {
	Doc  *doctree.Document
	Syms Symbols
}

func (r *TextRenderer) Render(doc *doctree.Document, syms Symbols) ([]byte, error) {
	p := &TextPage{Doc: doc, Syms: syms}

	var buf bytes.Buffer
	writeTitle(&buf, doc.Title, doc.Subtitle)
	for _, b := range doc.Blocks {
		out := r.block(p, b)
		if out == "" {
			continue
		}
		buf.WriteByte('\n')
		buf.WriteString(out)
		buf.WriteByte('\n')
	}
	if r.opts.IncludeSourceLinks {
		buf.WriteString("\nSource: " + doc.Path)
		if u := sourceURL(r.opts, doc.Path); u != "" {
			buf.WriteString(" <" + u + ">")
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (r *TextRenderer) block(p *TextPage, b doctree.Block) string {
	if fn, ok := r.transforms[b.Kind()]; ok {
		return fn(p, b)
	}
	return oneLine(doctree.BlockText(b))
}

func (r *TextRenderer) RenderIndex(entries []IndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	writeTitle(&buf, "Index", "")
	if len(entries) == 0 {
		return buf.Bytes(), nil
	}
	buf.WriteByte('\n')
	for _, e := range entries {
		line := "* " + oneLine(e.Title) + " [" + e.DocID + "]"
		if e.Subtitle != "" {
			line += " - " + oneLine(e.Subtitle)
		}
		buf.WriteString(line + "\n")
		for _, s := range e.Symbols {
			buf.WriteString("  * " + s + "\n")
		}
	}
	return buf.Bytes(), nil
}

func writeTitle(buf *bytes.Buffer, title, subtitle string) {
	title = oneLine(title)
	rule := strings.Repeat("=", max(3, utf8.RuneCountInString(title)))
	buf.WriteString(rule + "\n" + title + "\n" + rule + "\n")
	if subtitle != "" {
		buf.WriteString(oneLine(subtitle) + "\n")
	}
}

// Spans flattens inline spans: *strong*, _emphasis_, `code`, and links
// followed by where they point.
func (p *TextPage) Spans(spans []doctree.Span) string {
	var sb strings.Builder
	for _, s := range spans {
		switch s.Style {
		case doctree.StyleStrong:
			sb.WriteString("*" + p.Spans(s.Children) + "*")
		case doctree.StyleEmphasis, doctree.StyleUnderline:
			sb.WriteString("_" + p.Spans(s.Children) + "_")
		case doctree.StyleCode:
			sb.WriteString(inlineCode(s.Text))
		case doctree.StyleLink:
			if s.Link != nil {
				sb.WriteString(p.Link(s.Link))
				continue
			}
			sb.WriteString(p.Spans(s.Children))
		default:
			sb.WriteString(s.Text)
			sb.WriteString(p.Spans(s.Children))
		}
	}
	return oneLine(sb.String())
}

// Link renders a cross-reference as its label plus an annotation:
// "[doc#fragment]", "<url>" or "[unresolved: target]".
func (p *TextPage) Link(l *doctree.Link) string {
	label := p.Spans(l.Label)
	ref := l.Ref()
	switch ref.State {
	case doctree.RefExternal:
		if label == l.Target {
			return "<" + l.Target + ">"
		}
		return label + " <" + l.Target + ">"
	case doctree.RefResolved:
		dest := ref.DocID
		if ref.DocID == p.Doc.ID {
			dest = ""
		}
		if ref.Fragment != "" {
			dest += "#" + ref.Fragment
		}
		if dest == "" {
			return label
		}
		return label + " [" + dest + "]"
	}
	return label + " [unresolved: " + l.Target + "]"
}

func textHeading(p *TextPage, b doctree.Block) string {
	h := b.(*doctree.Heading)
	// Links in headings show only their label.
	title := oneLine(strings.TrimSpace(doctree.PlainText(h.Spans)))
	if title == "" {
		title = h.Anchor
	}
	title = parser.EscapeTextLine(title)
	level := min(max(h.Level, 1), len(parser.HeadingUnderlines))
	ch := parser.HeadingUnderlines[level-1 : level]
	return title + "\n" + strings.Repeat(ch, max(3, utf8.RuneCountInString(title)))
}

func textParagraph(p *TextPage, b doctree.Block) string {
	return parser.EscapeTextLine(p.Spans(b.(*doctree.Paragraph).Spans))
}

// textCode fences a literal with more backticks than any run inside it, so
// the literal comes back byte-for-byte.
func textCode(_ *TextPage, b doctree.Block) string {
	c := b.(*doctree.CodeSample)
	fence := strings.Repeat("`", max(3, longestRun(c.Literal, '`')+1))
	return fence + c.Lang + "\n" + c.Literal + "\n" + fence
}

func textDefinitions(p *TextPage, b doctree.Block) string {
	var lines []string
	for _, e := range b.(*doctree.DefinitionList).Entries {
		term := parser.EscapeTextLine(p.Spans(e.Term))
		if term == "" {
			term = "-"
		}
		lines = append(lines, term)
		if def := p.Spans(e.Definition); def != "" {
			lines = append(lines, ": "+def)
		} else {
			lines = append(lines, ":")
		}
	}
	return strings.Join(lines, "\n")
}

func textList(p *TextPage, b doctree.Block) string {
	list := b.(*doctree.List)
	counters := make([]int, 8)
	var lines []string
	for _, it := range list.Items {
		level := min(max(it.Level, 1), len(counters)-1)
		counters[level]++
		for deeper := level + 1; deeper < len(counters); deeper++ {
			counters[deeper] = 0
		}
		marker := "* "
		if list.Ordered {
			marker = strconv.Itoa(counters[level]) + ". "
		}
		lines = append(lines, strings.Repeat("  ", level-1)+marker+p.Spans(it.Spans))
	}
	return strings.Join(lines, "\n")
}

func textLinkBlock(p *TextPage, b doctree.Block) string {
	return parser.EscapeTextLine(p.Link(b.(*doctree.LinkBlock).Link))
}

func inlineCode(s string) string {
	ticks := strings.Repeat("`", longestRun(s, '`')+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return ticks + " " + s + " " + ticks
	}
	return ticks + s + ticks
}

func longestRun(s string, c byte) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

// oneLine keeps inline text on a single line so it cannot split a block.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
