package parser

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// formatCodes are the letters that open an inline formatting code when
// followed by '<' or '«'.
const formatCodes = "BCEIKLNRSTUVXZ"

// parseInline turns Pod formatting codes into spans. Codes nest; a code whose
// closing delimiter is missing is kept as literal text.
func parseInline(s string, line int) []doctree.Span {
	p := inlineParser{line: line}
	return doctree.MergeText(p.parse(s))
}

type inlineParser struct {
	line int
}

func (p *inlineParser) parse(s string) []doctree.Span {
	var out []doctree.Span
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			out = append(out, doctree.Plain(text.String()))
			text.Reset()
		}
	}

	for i := 0; i < len(s); {
		if code, inner, next, ok := matchCode(s, i); ok {
			flush()
			out = append(out, p.format(code, inner)...)
			i = next
			continue
		}
		text.WriteByte(s[i])
		i++
	}
	flush()
	return out
}

// matchCode recognises a formatting code starting at s[i] and returns its
// letter, contents and the index just past the closing delimiter.
func matchCode(s string, i int) (byte, string, int, bool) {
	c := s[i]
	if strings.IndexByte(formatCodes, c) < 0 || i+1 >= len(s) {
		return 0, "", 0, false
	}
	rest := s[i+1:]

	var opening, closing string
	switch {
	case strings.HasPrefix(rest, "«"):
		opening, closing = "«", "»"
	case rest[0] == '<':
		n := len(rest) - len(strings.TrimLeft(rest, "<"))
		opening, closing = strings.Repeat("<", n), strings.Repeat(">", n)
	default:
		return 0, "", 0, false
	}

	start := i + 1 + len(opening)
	end := findClose(s, start, opening, closing)
	if end < 0 {
		return 0, "", 0, false
	}
	inner := s[start:end]
	if len(opening) > 1 {
		// Doubled delimiters ignore the spaces just inside them.
		inner = strings.TrimSpace(inner)
	}
	return c, inner, end + len(closing), true
}

// findClose finds the delimiter that balances opening, starting at start.
func findClose(s string, start int, opening, closing string) int {
	depth := 0
	for j := start; j < len(s); {
		switch {
		case strings.HasPrefix(s[j:], closing):
			if depth == 0 {
				return j
			}
			depth--
			j += len(closing)
		case strings.HasPrefix(s[j:], opening):
			depth++
			j += len(opening)
		default:
			j++
		}
	}
	return -1
}

func (p *inlineParser) format(code byte, inner string) []doctree.Span {
	switch code {
	case 'B':
		return []doctree.Span{{Style: doctree.StyleStrong, Children: p.parse(inner)}}
	case 'I':
		return []doctree.Span{{Style: doctree.StyleEmphasis, Children: p.parse(inner)}}
	case 'U':
		return []doctree.Span{{Style: doctree.StyleUnderline, Children: p.parse(inner)}}
	case 'C', 'K', 'T':
		return []doctree.Span{{Style: doctree.StyleCode, Text: inner}}
	case 'V':
		return []doctree.Span{doctree.Plain(inner)}
	case 'Z':
		return nil
	case 'E':
		return []doctree.Span{doctree.Plain(decodeEntities(inner))}
	case 'X':
		label, _, _ := cutTopLevel(inner, '|')
		return p.parse(label)
	case 'N':
		out := []doctree.Span{doctree.Plain(" (")}
		out = append(out, p.parse(inner)...)
		return append(out, doctree.Plain(")"))
	case 'L':
		label, target, found := cutTopLevel(inner, '|')
		labelSpans := doctree.TrimSpans(p.parse(label))
		if !found {
			target = doctree.PlainText(labelSpans)
		}
		l := doctree.NewLink(target, labelSpans, p.line)
		return []doctree.Span{linkSpan(l)}
	default: // R, S
		return p.parse(inner)
	}
}

// cutTopLevel splits s at the first sep that is not inside a nested
// formatting code.
func cutTopLevel(s string, sep byte) (string, string, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '<':
			depth++
		case s[i] == '>' && depth > 0:
			depth--
		case strings.HasPrefix(s[i:], "«"):
			depth++
		case strings.HasPrefix(s[i:], "»") && depth > 0:
			depth--
		case s[i] == sep && depth == 0:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// decodeEntities expands E<> contents: semicolon separated numbers
// (decimal, 0x, 0o, 0b) or HTML entity names.
func decodeEntities(s string) string {
	var sb strings.Builder
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if r, ok := entityNumber(part); ok {
			sb.WriteRune(r)
			continue
		}
		if dec := html.UnescapeString("&" + part + ";"); dec != "&"+part+";" {
			sb.WriteString(dec)
			continue
		}
		sb.WriteString(part)
	}
	return sb.String()
}

// entityNumber reads a code point. Plain digits are decimal even with
// leading zeros; 0x, 0o and 0b select the base.
func entityNumber(s string) (rune, bool) {
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			base = 0
		}
	}
	n, err := strconv.ParseInt(s, base, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return rune(n), true
}
