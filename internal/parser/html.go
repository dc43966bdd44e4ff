package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// HTMLParser handles HTML files. Headings, paragraphs, pre blocks, lists,
// definition lists and table cells become blocks; everything else is walked
// for the content it contains.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &doctree.Document{Title: findTitle(root)}
	b := &htmlBuilder{doc: doc}

	// Find <body> or use whole document.
	if body := findBody(root); body != nil {
		b.walk(body)
	} else {
		b.walk(root)
	}

	return finish(doc, "html", filename), nil
}

type htmlBuilder struct {
	doc *doctree.Document
}

func (b *htmlBuilder) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			spans := doctree.TrimSpans(collapse(b.inlines(n)))
			if len(spans) > 0 {
				b.doc.Blocks = append(b.doc.Blocks, &doctree.Heading{Level: level, Spans: spans})
			}
			return
		}

		switch n.Data {
		case "script", "style", "nav", "footer", "header", "title":
			return
		case "p", "td", "th", "caption":
			b.paragraph(n)
			return
		case "pre":
			b.doc.Blocks = append(b.doc.Blocks, &doctree.CodeSample{
				Lang:    codeClassLang(n),
				Literal: strings.TrimSuffix(strings.TrimPrefix(textContent(n), "\n"), "\n"),
			})
			return
		case "ul", "ol":
			list := &doctree.List{Ordered: n.Data == "ol"}
			b.listItems(n, 1, list)
			if len(list.Items) > 0 {
				b.doc.Blocks = append(b.doc.Blocks, list)
			}
			return
		case "dl":
			b.definitionList(n)
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
}

func (b *htmlBuilder) paragraph(n *html.Node) {
	spans := doctree.TrimSpans(collapse(b.inlines(n)))
	if len(spans) == 0 {
		return
	}
	b.doc.Blocks = append(b.doc.Blocks, paragraphBlock(spans, 0))
}

func (b *htmlBuilder) listItems(list *html.Node, level int, out *doctree.List) {
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		var spans []doctree.Span
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				nested = append(nested, c)
				continue
			}
			spans = append(spans, b.inline(c)...)
		}
		out.Items = append(out.Items, doctree.ListItem{Level: level, Spans: doctree.TrimSpans(collapse(spans))})
		for _, l := range nested {
			b.listItems(l, level+1, out)
		}
	}
}

func (b *htmlBuilder) definitionList(n *html.Node) {
	out := &doctree.DefinitionList{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		spans := doctree.TrimSpans(collapse(b.inlines(c)))
		switch c.Data {
		case "dt":
			out.Entries = append(out.Entries, doctree.Definition{Term: spans})
		case "dd":
			if len(out.Entries) == 0 {
				out.Entries = append(out.Entries, doctree.Definition{})
			}
			e := &out.Entries[len(out.Entries)-1]
			if len(e.Definition) > 0 {
				e.Definition = append(e.Definition, doctree.Plain(" "))
			}
			e.Definition = doctree.TrimSpans(append(e.Definition, spans...))
		}
	}
	if len(out.Entries) > 0 {
		b.doc.Blocks = append(b.doc.Blocks, out)
	}
}

func (b *htmlBuilder) inlines(n *html.Node) []doctree.Span {
	var out []doctree.Span
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, b.inline(c)...)
	}
	return doctree.MergeText(out)
}

func (b *htmlBuilder) inline(n *html.Node) []doctree.Span {
	switch n.Type {
	case html.TextNode:
		return []doctree.Span{doctree.Plain(n.Data)}
	case html.ElementNode:
	default:
		return nil
	}

	switch n.Data {
	case "script", "style":
		return nil
	case "br":
		return []doctree.Span{doctree.Plain(" ")}
	case "em", "i":
		return []doctree.Span{{Style: doctree.StyleEmphasis, Children: b.inlines(n)}}
	case "strong", "b":
		return []doctree.Span{{Style: doctree.StyleStrong, Children: b.inlines(n)}}
	case "u":
		return []doctree.Span{{Style: doctree.StyleUnderline, Children: b.inlines(n)}}
	case "code", "kbd", "samp", "tt":
		return []doctree.Span{{Style: doctree.StyleCode, Text: textContent(n)}}
	case "a":
		href := attr(n, "href")
		if href == "" {
			return b.inlines(n)
		}
		label := doctree.TrimSpans(collapse(b.inlines(n)))
		return []doctree.Span{linkSpan(doctree.NewLink(href, label, 0))}
	}
	return b.inlines(n)
}

// collapse folds runs of whitespace in plain spans into single spaces, as a
// browser would.
func collapse(spans []doctree.Span) []doctree.Span {
	for i := range spans {
		switch {
		case spans[i].Style == doctree.StylePlain:
			spans[i].Text = collapseSpace(spans[i].Text)
		case spans[i].Link == nil:
			spans[i].Children = collapse(spans[i].Children)
		}
	}
	return spans
}

func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

// codeClassLang reads "language-x" from a pre element or its code child.
func codeClassLang(n *html.Node) string {
	for _, el := range []*html.Node{n, n.FirstChild} {
		if el == nil || el.Type != html.ElementNode {
			continue
		}
		for _, cls := range strings.Fields(attr(el, "class")) {
			if lang, ok := strings.CutPrefix(cls, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
