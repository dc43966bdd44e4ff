package parser

import (
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// HeadingUnderlines maps heading levels 1..6 to the setext underline
// character used by plaintext output.
const HeadingUnderlines = "=-~^\"'"

// TextParser handles plain text files, including the layout written by the
// plaintext renderer: an over- and underlined title, setext headings, fenced
// code, "* " and "1. " list items and ": " definitions. Anything else is a
// paragraph. A leading backslash on a paragraph, heading or term line is
// dropped; the renderer adds one to lines that would otherwise read as
// markup.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Lines are split on "\n" only so code literals survive byte-for-byte.
	s := strings.TrimSuffix(string(src), "\n")
	var lines []string
	if s != "" {
		lines = strings.Split(s, "\n")
	}

	tp := &textState{path: filepath.ToSlash(filename), lines: lines, doc: &doctree.Document{}}
	if err := tp.run(); err != nil {
		return nil, err
	}
	return finish(tp.doc, "text", filename), nil
}

type textState struct {
	path  string
	lines []string
	i     int
	doc   *doctree.Document
}

func (t *textState) run() error {
	t.title()
	for t.i < len(t.lines) {
		line := t.lines[t.i]
		lineNo := t.i + 1
		switch {
		case isBlank(line):
			t.i++
		case fenceLen(line) > 0:
			if err := t.code(lineNo); err != nil {
				return err
			}
		case t.i+1 < len(t.lines) && underlineLevel(line, t.lines[t.i+1]) > 0:
			level := underlineLevel(line, t.lines[t.i+1])
			t.doc.Blocks = append(t.doc.Blocks, &doctree.Heading{
				Level: level,
				Spans: []doctree.Span{doctree.Plain(unescapeTextLine(strings.TrimSpace(line)))},
				Line:  lineNo,
			})
			t.i += 2
		case isListItem(line):
			t.list(lineNo)
		case t.i+1 < len(t.lines) && isDefinitionLine(t.lines[t.i+1]):
			t.definitions(lineNo)
		default:
			t.paragraph(lineNo)
		}
	}
	return nil
}

// title consumes a leading "===/Title/===" block and an optional subtitle
// line directly beneath it.
func (t *textState) title() {
	for t.i < len(t.lines) && isBlank(t.lines[t.i]) {
		t.i++
	}
	if t.i+2 >= len(t.lines) {
		return
	}
	over, text, under := t.lines[t.i], t.lines[t.i+1], t.lines[t.i+2]
	if !isRule(over, '=') || over != under || isBlank(text) {
		return
	}
	t.doc.Title = strings.TrimSpace(text)
	t.i += 3
	if t.i < len(t.lines) && !isBlank(t.lines[t.i]) {
		t.doc.Subtitle = strings.TrimSpace(t.lines[t.i])
		t.i++
	}
}

func (t *textState) code(lineNo int) error {
	open := t.lines[t.i]
	n := fenceLen(open)
	fence := open[:n]
	lang := strings.TrimSpace(open[n:])
	t.i++

	var body []string
	for t.i < len(t.lines) {
		line := t.lines[t.i]
		t.i++
		if line == fence {
			t.doc.Blocks = append(t.doc.Blocks, &doctree.CodeSample{
				Lang:    lang,
				Literal: strings.Join(body, "\n"),
				Line:    lineNo,
			})
			return nil
		}
		body = append(body, line)
	}
	return &MalformedMarkupError{Path: t.path, Line: lineNo, Expected: "closing code fence " + fence, Found: "end of document"}
}

func (t *textState) list(lineNo int) {
	list := &doctree.List{Line: lineNo}
	for t.i < len(t.lines) && !isBlank(t.lines[t.i]) {
		line := t.lines[t.i]
		if level, ordered, text, ok := listItem(line); ok {
			if len(list.Items) == 0 {
				list.Ordered = ordered
			}
			list.Items = append(list.Items, doctree.ListItem{Level: level, Spans: []doctree.Span{doctree.Plain(text)}})
		} else {
			// Continuation of the previous item.
			last := &list.Items[len(list.Items)-1]
			last.Spans = doctree.MergeText(append(last.Spans, doctree.Plain(" "+strings.TrimSpace(line))))
		}
		t.i++
	}
	t.doc.Blocks = append(t.doc.Blocks, list)
}

func (t *textState) definitions(lineNo int) {
	dl := &doctree.DefinitionList{Line: lineNo}
	for t.i+1 < len(t.lines) && !isBlank(t.lines[t.i]) && isDefinitionLine(t.lines[t.i+1]) {
		term := unescapeTextLine(strings.TrimSpace(t.lines[t.i]))
		def := strings.TrimSpace(strings.TrimPrefix(t.lines[t.i+1], ":"))
		t.i += 2
		for t.i < len(t.lines) && strings.HasPrefix(t.lines[t.i], "  ") && !isBlank(t.lines[t.i]) {
			def += " " + strings.TrimSpace(t.lines[t.i])
			t.i++
		}
		entry := doctree.Definition{Term: []doctree.Span{doctree.Plain(term)}}
		if def != "" {
			entry.Definition = []doctree.Span{doctree.Plain(def)}
		}
		dl.Entries = append(dl.Entries, entry)
	}
	t.doc.Blocks = append(t.doc.Blocks, dl)
}

func (t *textState) paragraph(lineNo int) {
	var parts []string
	for t.i < len(t.lines) {
		line := t.lines[t.i]
		if isBlank(line) || (len(parts) > 0 && fenceLen(line) > 0) {
			break
		}
		line = strings.TrimSpace(line)
		if len(parts) == 0 {
			line = unescapeTextLine(line)
		}
		parts = append(parts, line)
		t.i++
	}
	t.doc.Blocks = append(t.doc.Blocks, &doctree.Paragraph{
		Spans: []doctree.Span{doctree.Plain(strings.Join(parts, " "))},
		Line:  lineNo,
	})
}

// EscapeTextLine prefixes a backslash to a line of inline text that would be
// read back as a code fence or a list item, or that already starts with a
// backslash.
func EscapeTextLine(s string) string {
	if strings.HasPrefix(strings.TrimLeft(s, " "), `\`) || fenceLen(s) > 0 || isListItem(s) {
		return `\` + s
	}
	return s
}

func unescapeTextLine(s string) string {
	return strings.TrimPrefix(s, `\`)
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// fenceLen returns the length of a leading run of three or more backticks.
func fenceLen(line string) int {
	n := 0
	for n < len(line) && line[n] == '`' {
		n++
	}
	if n < 3 {
		return 0
	}
	return n
}

// isRule reports whether s is three or more repetitions of c.
func isRule(s string, c byte) bool {
	if len(s) < 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			return false
		}
	}
	return true
}

// underlineLevel returns the heading level when under is a setext
// underline at least as wide as text, or 0.
func underlineLevel(text, under string) int {
	if isBlank(text) || text[0] == ' ' || isListItem(text) || fenceLen(text) > 0 || under == "" {
		return 0
	}
	level := strings.IndexByte(HeadingUnderlines, under[0]) + 1
	if level == 0 || !isRule(under, under[0]) {
		return 0
	}
	if utf8.RuneCountInString(under) < utf8.RuneCountInString(strings.TrimSpace(text)) {
		return 0
	}
	return level
}

func isDefinitionLine(s string) bool {
	return s == ":" || strings.HasPrefix(s, ": ")
}

func isListItem(line string) bool {
	_, _, _, ok := listItem(line)
	return ok
}

// listItem parses "  * text" or "  3. text"; two spaces of indentation per
// nesting level.
func listItem(line string) (level int, ordered bool, text string, ok bool) {
	indent := len(line) - len(strings.TrimLeft(line, " "))
	rest := line[indent:]
	switch {
	case strings.HasPrefix(rest, "* "), strings.HasPrefix(rest, "- "):
		text = rest[2:]
	default:
		digits := 0
		for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
			digits++
		}
		if digits == 0 || !strings.HasPrefix(rest[digits:], ". ") {
			return 0, false, "", false
		}
		ordered = true
		text = rest[digits+2:]
	}
	return indent/2 + 1, ordered, strings.TrimSpace(text), true
}
