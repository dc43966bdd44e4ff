package parser

import (
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
)

// PodParser handles the Pod-style reference markup: =TITLE, =headN,
// =begin code/=end code, =item, =defn and inline formatting codes.
type PodParser struct{}

func (p *PodParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	st := &podState{
		path:  filepath.ToSlash(filename),
		lines: splitLines(string(src)),
		doc:   &doctree.Document{},
	}
	if err := st.run(); err != nil {
		return nil, err
	}
	return finish(st.doc, "pod", filename), nil
}

type podBlock struct {
	name string
	line int
}

type podState struct {
	path  string
	lines []string
	i     int
	doc   *doctree.Document

	open     []podBlock
	para     []string
	paraLine int
	list     *doctree.List
	defs     *doctree.DefinitionList
}

var langConfig = regexp.MustCompile(`:lang\s*(?:<\s*([^>]*?)\s*>|\(\s*['"]([^'"]*)['"]\s*\)|«\s*([^»]*?)\s*»)`)

func (st *podState) run() error {
	for st.i < len(st.lines) {
		line := st.lines[st.i]
		lineNo := st.i + 1
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			st.flushPara()
			st.i++
		case isDirective(trimmed):
			st.flushPara()
			if err := st.directive(line, lineNo); err != nil {
				return err
			}
		case len(st.para) > 0:
			st.para = append(st.para, trimmed)
			st.i++
		case line[0] == ' ' || line[0] == '\t':
			st.implicitCode(lineNo)
		default:
			st.para = []string{trimmed}
			st.paraLine = lineNo
			st.i++
		}
	}
	st.flushPara()

	if n := len(st.open); n > 0 {
		b := st.open[n-1]
		return st.malformed(b.line, "=end "+b.name, "end of document")
	}
	return nil
}

func isDirective(trimmed string) bool {
	if len(trimmed) < 2 || trimmed[0] != '=' {
		return false
	}
	return unicode.IsLetter(rune(trimmed[1]))
}

// splitDirective splits "=head2 method foo" into ("head2", "method foo").
func splitDirective(trimmed string) (string, string) {
	trimmed = strings.TrimPrefix(trimmed, "=")
	i := strings.IndexFunc(trimmed, unicode.IsSpace)
	if i < 0 {
		return trimmed, ""
	}
	return trimmed[:i], strings.TrimSpace(trimmed[i:])
}

func (st *podState) directive(line string, lineNo int) error {
	trimmed := strings.TrimSpace(line)
	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	name, rest := splitDirective(trimmed)
	st.i++

	switch {
	case name == "begin":
		blockName, config := splitDirective("=" + rest)
		if blockName == "" {
			return st.malformed(lineNo, "a block name after =begin", "")
		}
		switch blockName {
		case "code", "output", "input", "table":
			body, err := st.readUntilEnd(blockName, lineNo, indent)
			if err != nil {
				return err
			}
			st.emit(&doctree.CodeSample{Lang: codeLang(blockName, config), Literal: body, Line: lineNo})
		case "comment":
			if _, err := st.readUntilEnd(blockName, lineNo, indent); err != nil {
				return err
			}
		default:
			st.open = append(st.open, podBlock{name: blockName, line: lineNo})
		}

	case name == "end":
		blockName, _ := splitDirective("=" + rest)
		n := len(st.open)
		if n == 0 {
			return st.malformed(lineNo, "a matching =begin", "=end "+blockName)
		}
		if top := st.open[n-1]; top.name != blockName {
			return st.malformed(lineNo, "=end "+top.name, "=end "+blockName)
		}
		st.open = st.open[:n-1]

	case name == "for":
		blockName, config := splitDirective("=" + rest)
		body := st.readRawParagraph()
		switch blockName {
		case "code", "output", "input", "table":
			st.emit(&doctree.CodeSample{Lang: codeLang(blockName, config), Literal: dedent(body), Line: lineNo})
		case "comment":
		default:
			st.addParagraph(trimLines(body), lineNo)
		}

	case name == "code":
		body := st.readRawParagraph()
		if rest != "" {
			body = append([]string{rest}, body...)
		}
		st.emit(&doctree.CodeSample{Literal: dedent(body), Line: lineNo})

	case name == "comment":
		st.readRawParagraph()

	case name == "TITLE":
		st.doc.Title = doctree.PlainText(parseInline(st.joinContinuation(rest), lineNo))

	case name == "SUBTITLE":
		st.doc.Subtitle = doctree.PlainText(parseInline(st.joinContinuation(rest), lineNo))

	case strings.HasPrefix(name, "head"):
		level, ok := directiveLevel(name, "head", 6)
		if !ok {
			st.unknown(name, rest, lineNo)
			return nil
		}
		spans := doctree.TrimSpans(parseInline(st.joinContinuation(rest), lineNo))
		st.emit(&doctree.Heading{Level: level, Spans: spans, Line: lineNo})

	case strings.HasPrefix(name, "item"):
		level, ok := directiveLevel(name, "item", 4)
		if !ok {
			st.unknown(name, rest, lineNo)
			return nil
		}
		spans := doctree.TrimSpans(parseInline(st.joinContinuation(rest), lineNo))
		st.addItem(level, spans, lineNo)

	case name == "defn":
		term := doctree.TrimSpans(parseInline(rest, lineNo))
		def := doctree.TrimSpans(parseInline(strings.Join(st.readContinuation(), " "), lineNo))
		st.addDefinition(doctree.Definition{Term: term, Definition: def}, lineNo)

	case name == "config", name == "use", name == "encoding",
		name == "pod", name == "cut", name == "over", name == "back":

	default:
		st.unknown(name, rest, lineNo)
	}
	return nil
}

func (st *podState) unknown(name, rest string, lineNo int) {
	st.doc.Warnings = append(st.doc.Warnings,
		diag.Warning(diag.KindUnknownDirective, lineNo, "unknown directive =%s treated as a paragraph", name))
	st.addParagraph(st.joinContinuation(rest), lineNo)
}

func (st *podState) malformed(line int, expected, found string) error {
	return &MalformedMarkupError{Path: st.path, Line: line, Expected: expected, Found: found}
}

// readUntilEnd consumes raw lines up to the matching "=end name" line.
func (st *podState) readUntilEnd(name string, beginLine, indent int) (string, error) {
	var body []string
	for st.i < len(st.lines) {
		line := st.lines[st.i]
		st.i++
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "=end" && fields[1] == name {
			return strings.Join(stripIndent(body, indent), "\n"), nil
		}
		body = append(body, line)
	}
	return "", st.malformed(beginLine, "=end "+name, "end of document")
}

// readRawParagraph consumes lines up to the next blank line, unmodified.
func (st *podState) readRawParagraph() []string {
	var body []string
	for st.i < len(st.lines) && strings.TrimSpace(st.lines[st.i]) != "" {
		body = append(body, st.lines[st.i])
		st.i++
	}
	return body
}

// readContinuation consumes following non-blank, non-directive lines.
func (st *podState) readContinuation() []string {
	var out []string
	for st.i < len(st.lines) {
		t := strings.TrimSpace(st.lines[st.i])
		if t == "" || isDirective(t) {
			break
		}
		out = append(out, t)
		st.i++
	}
	return out
}

func (st *podState) joinContinuation(first string) string {
	parts := st.readContinuation()
	if first != "" {
		parts = append([]string{first}, parts...)
	}
	return strings.Join(parts, " ")
}

// implicitCode collects an indented run of lines as a code sample.
func (st *podState) implicitCode(lineNo int) {
	var body []string
	last := st.i
	for j := st.i; j < len(st.lines); j++ {
		line := st.lines[j]
		if strings.TrimSpace(line) == "" {
			body = append(body, "")
			continue
		}
		if line[0] != ' ' && line[0] != '\t' {
			break
		}
		body = append(body, line)
		last = j
	}
	body = body[:last-st.i+1]
	st.i = last + 1
	st.emit(&doctree.CodeSample{Literal: dedent(body), Line: lineNo})
}

func (st *podState) flushPara() {
	if len(st.para) == 0 {
		return
	}
	st.addParagraph(strings.Join(st.para, " "), st.paraLine)
	st.para = nil
}

func (st *podState) addParagraph(text string, line int) {
	spans := doctree.TrimSpans(parseInline(text, line))
	if len(spans) == 0 {
		return
	}
	st.emit(paragraphBlock(spans, line))
}

func (st *podState) emit(b doctree.Block) {
	st.list = nil
	st.defs = nil
	st.doc.Blocks = append(st.doc.Blocks, b)
}

func (st *podState) addItem(level int, spans []doctree.Span, line int) {
	if st.list == nil {
		l := &doctree.List{Line: line}
		st.emit(l)
		st.list = l
	}
	st.list.Items = append(st.list.Items, doctree.ListItem{Level: level, Spans: spans})
}

func (st *podState) addDefinition(d doctree.Definition, line int) {
	if st.defs == nil {
		dl := &doctree.DefinitionList{Line: line}
		st.emit(dl)
		st.defs = dl
	}
	st.defs.Entries = append(st.defs.Entries, d)
}

// directiveLevel parses "head2" or "item" into a level. A bare prefix is level 1.
func directiveLevel(name, prefix string, limit int) (int, bool) {
	digits := strings.TrimPrefix(name, prefix)
	if digits == "" {
		return 1, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > limit {
		return 0, false
	}
	return n, true
}

func codeLang(blockName, config string) string {
	if m := langConfig.FindStringSubmatch(config); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return g
			}
		}
	}
	if blockName != "code" {
		return blockName
	}
	return ""
}

func trimLines(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimSpace(l))
	}
	return strings.Join(out, " ")
}

func leadingWhitespace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// dedent removes the indentation shared by all non-blank lines.
func dedent(lines []string) string {
	shared := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if n := leadingWhitespace(l); shared < 0 || n < shared {
			shared = n
		}
	}
	if shared < 0 {
		shared = 0
	}
	return strings.Join(stripIndent(lines, shared), "\n")
}

// stripIndent removes up to n leading whitespace bytes from each line.
func stripIndent(lines []string, n int) []string {
	if n == 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		k := leadingWhitespace(l)
		if k > n {
			k = n
		}
		out[i] = l[k:]
	}
	return out
}
