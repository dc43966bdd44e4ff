package render

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/toc"
)

// UnresolvedClass marks links whose target could not be resolved.
const UnresolvedClass = "unresolved-link"

const pageStyle = `body{font-family:sans-serif;max-width:50em;margin:auto}` +
	`pre{background:#f6f6f6;padding:.5em;overflow:auto}` +
	`.` + UnresolvedClass + `{color:#b00000;text-decoration:underline wavy}` +
	`.` + UnresolvedClass + `::after{content:" [unresolved]";font-size:smaller}`

// HTMLTransform draws one block as HTML nodes.
type HTMLTransform func(p *HTMLPage, b doctree.Block) []*html.Node

// HTMLRenderer renders documents as standalone HTML5 pages.
type HTMLRenderer struct {
	opts       Options
	transforms map[string]HTMLTransform
}

// NewHTML returns an HTML renderer with the default transforms installed.
func NewHTML(opts Options) *HTMLRenderer {
	r := &HTMLRenderer{opts: opts, transforms: make(map[string]HTMLTransform)}
	r.Handle("heading", htmlHeading)
	r.Handle("paragraph", htmlParagraph)
	r.Handle("code", htmlCode)
	r.Handle("definition_list", htmlDefinitions)
	r.Handle("list", htmlList)
	r.Handle("link", htmlLinkBlock)
	return r
}

// Handle installs the transform for a block kind, replacing any previous
// one. It must not be called while rendering.
func (r *HTMLRenderer) Handle(kind string, fn HTMLTransform) {
	r.transforms[kind] = fn
}

func (r *HTMLRenderer) Extension() string { return ".html" }

// HTMLPage is the per-document state handed to transforms.
type HTMLPage struct {
	Doc  *doctree.Document
	Syms Symbols
	ext  string
}

func (r *HTMLRenderer) Render(doc *doctree.Document, syms Symbols) ([]byte, error) {
	p := &HTMLPage{Doc: doc, Syms: syms, ext: r.Extension()}

	body := element(atom.Body)
	header := element(atom.Header)
	header.AppendChild(textElement(atom.H1, doc.Title, attr("class", "title")))
	if doc.Subtitle != "" {
		header.AppendChild(textElement(atom.P, doc.Subtitle, attr("class", "subtitle")))
	}
	body.AppendChild(header)

	if entries := toc.Build(doc); len(doc.Headings()) >= 2 {
		nav := element(atom.Nav, attr("class", "toc"))
		nav.AppendChild(tocList(entries))
		body.AppendChild(nav)
	}

	content := element(atom.Main)
	for _, b := range doc.Blocks {
		for _, n := range r.block(p, b) {
			content.AppendChild(n)
		}
	}
	body.AppendChild(content)

	if r.opts.IncludeSourceLinks {
		body.AppendChild(r.sourceFooter(doc))
	}

	return renderPage(doc.Title, body)
}

func (r *HTMLRenderer) block(p *HTMLPage, b doctree.Block) []*html.Node {
	if fn, ok := r.transforms[b.Kind()]; ok {
		return fn(p, b)
	}
	return []*html.Node{textElement(atom.P, doctree.BlockText(b), attr("class", "block-"+b.Kind()))}
}

func (r *HTMLRenderer) sourceFooter(doc *doctree.Document) *html.Node {
	footer := element(atom.Footer)
	p := element(atom.P, attr("class", "source"))
	p.AppendChild(text("Source: "))
	if u := sourceURL(r.opts, doc.Path); u != "" {
		p.AppendChild(textElement(atom.A, doc.Path, attr("href", u)))
	} else {
		p.AppendChild(textElement(atom.Code, doc.Path))
	}
	footer.AppendChild(p)
	return footer
}

func (r *HTMLRenderer) RenderIndex(entries []IndexEntry) ([]byte, error) {
	body := element(atom.Body)
	body.AppendChild(textElement(atom.H1, "Index", attr("class", "title")))

	ul := element(atom.Ul, attr("class", "documents"))
	for _, e := range entries {
		li := element(atom.Li)
		li.AppendChild(textElement(atom.A, e.Title, attr("href", RelativeHref(IndexID, e.DocID, r.Extension(), ""))))
		if e.Subtitle != "" {
			li.AppendChild(text(" - " + e.Subtitle))
		}
		if len(e.Symbols) > 0 {
			syms := element(atom.Ul, attr("class", "symbols"))
			for _, s := range e.Symbols {
				item := element(atom.Li)
				item.AppendChild(textElement(atom.Code, s))
				syms.AppendChild(item)
			}
			li.AppendChild(syms)
		}
		ul.AppendChild(li)
	}
	body.AppendChild(ul)
	return renderPage("Index", body)
}

// Spans converts inline spans to nodes, resolving link hrefs relative to
// the page being rendered.
func (p *HTMLPage) Spans(spans []doctree.Span) []*html.Node {
	var out []*html.Node
	for _, s := range spans {
		switch s.Style {
		case doctree.StyleEmphasis:
			out = append(out, withChildren(element(atom.Em), p.Spans(s.Children)))
		case doctree.StyleStrong:
			out = append(out, withChildren(element(atom.Strong), p.Spans(s.Children)))
		case doctree.StyleUnderline:
			out = append(out, withChildren(element(atom.U), p.Spans(s.Children)))
		case doctree.StyleCode:
			out = append(out, textElement(atom.Code, s.Text))
		case doctree.StyleLink:
			if s.Link != nil {
				out = append(out, p.Link(s.Link))
				continue
			}
			out = append(out, p.Spans(s.Children)...)
		default:
			if s.Text != "" {
				out = append(out, text(s.Text))
			}
			out = append(out, p.Spans(s.Children)...)
		}
	}
	return out
}

// Link renders a cross-reference: an anchor for resolved and external
// targets, a marked span otherwise.
func (p *HTMLPage) Link(l *doctree.Link) *html.Node {
	label := p.Spans(l.Label)
	if len(label) == 0 {
		label = []*html.Node{text(l.Target)}
	}

	ref := l.Ref()
	switch ref.State {
	case doctree.RefExternal:
		a := element(atom.A, attr("href", l.Target), attr("class", "external"))
		return withChildren(a, label)
	case doctree.RefResolved:
		a := element(atom.A, attr("href", RelativeHref(p.Doc.ID, ref.DocID, p.ext, ref.Fragment)))
		if ref.Symbol != "" {
			a.Attr = append(a.Attr, attr("title", ref.Symbol))
		}
		return withChildren(a, label)
	}
	span := element(atom.Span,
		attr("class", UnresolvedClass),
		attr("data-target", l.Target),
		attr("title", "unresolved reference: "+l.Target))
	return withChildren(span, label)
}

func htmlHeading(p *HTMLPage, b doctree.Block) []*html.Node {
	h := b.(*doctree.Heading)
	// The page title is the only h1.
	level := min(h.Level+1, 6)
	a := atom.Lookup([]byte("h" + strconv.Itoa(level)))
	n := element(a, attr("id", h.Anchor))
	return []*html.Node{withChildren(n, p.Spans(h.Spans))}
}

func htmlParagraph(p *HTMLPage, b doctree.Block) []*html.Node {
	para := b.(*doctree.Paragraph)
	return []*html.Node{withChildren(element(atom.P), p.Spans(para.Spans))}
}

func htmlCode(_ *HTMLPage, b doctree.Block) []*html.Node {
	c := b.(*doctree.CodeSample)
	pre := element(atom.Pre)
	var code *html.Node
	if c.Lang != "" {
		code = textElement(atom.Code, c.Literal, attr("class", "language-"+c.Lang))
	} else {
		code = textElement(atom.Code, c.Literal)
	}
	pre.AppendChild(code)
	return []*html.Node{pre}
}

func htmlDefinitions(p *HTMLPage, b doctree.Block) []*html.Node {
	dl := element(atom.Dl)
	for _, e := range b.(*doctree.DefinitionList).Entries {
		dl.AppendChild(withChildren(element(atom.Dt), p.Spans(e.Term)))
		dl.AppendChild(withChildren(element(atom.Dd), p.Spans(e.Definition)))
	}
	return []*html.Node{dl}
}

// htmlList nests items by level; a deeper item opens a list inside the
// previous item.
func htmlList(p *HTMLPage, b doctree.Block) []*html.Node {
	list := b.(*doctree.List)
	tag := atom.Ul
	if list.Ordered {
		tag = atom.Ol
	}

	root := element(tag)
	stack := []*html.Node{root}
	var lastItem *html.Node
	for _, it := range list.Items {
		level := max(it.Level, 1)
		for len(stack) < level && lastItem != nil {
			nested := element(tag)
			lastItem.AppendChild(nested)
			stack = append(stack, nested)
		}
		if len(stack) > level {
			stack = stack[:level]
		}
		li := withChildren(element(atom.Li), p.Spans(it.Spans))
		stack[len(stack)-1].AppendChild(li)
		lastItem = li
	}
	return []*html.Node{root}
}

func htmlLinkBlock(p *HTMLPage, b doctree.Block) []*html.Node {
	para := element(atom.P, attr("class", "link"))
	para.AppendChild(p.Link(b.(*doctree.LinkBlock).Link))
	return []*html.Node{para}
}

func tocList(entries []*toc.Entry) *html.Node {
	ul := element(atom.Ul)
	for _, e := range entries {
		li := element(atom.Li)
		li.AppendChild(textElement(atom.A, e.Text, attr("href", "#"+e.Anchor)))
		if len(e.Children) > 0 {
			li.AppendChild(tocList(e.Children))
		}
		ul.AppendChild(li)
	}
	return ul
}

func renderPage(title string, body *html.Node) ([]byte, error) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, attr("lang", "en"))
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	head.AppendChild(element(atom.Meta, attr("name", "generator"), attr("content", "refdoc")))
	head.AppendChild(textElement(atom.Title, title))
	head.AppendChild(textElement(atom.Style, pageStyle))
	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textElement(a atom.Atom, s string, attrs ...html.Attribute) *html.Node {
	n := element(a, attrs...)
	n.AppendChild(text(s))
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func withChildren(n *html.Node, children []*html.Node) *html.Node {
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}
