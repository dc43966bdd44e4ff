package doctree

import "strings"

// Style is the presentation of an inline span.
type Style string

const (
	StylePlain     Style = "plain"
	StyleEmphasis  Style = "emphasis"
	StyleStrong    Style = "strong"
	StyleUnderline Style = "underline"
	StyleCode      Style = "code"
	StyleLink      Style = "link"
)

// Span is an inline run of text. Plain and code spans carry Text; the other
// styles wrap Children. Link spans also point at their Link, whose Label is
// the same slice as Children.
type Span struct {
	Style    Style  `json:"style"`
	Text     string `json:"text,omitempty"`
	Children []Span `json:"children,omitempty"`
	Link     *Link  `json:"link,omitempty"`
}

// Plain returns a plain text span.
func Plain(s string) Span { return Span{Style: StylePlain, Text: s} }

// PlainText flattens spans into their text, dropping all formatting.
func PlainText(spans []Span) string {
	var sb strings.Builder
	writePlain(&sb, spans)
	return sb.String()
}

func writePlain(sb *strings.Builder, spans []Span) {
	for _, s := range spans {
		if s.Text != "" {
			sb.WriteString(s.Text)
		}
		writePlain(sb, s.Children)
	}
}

// MergeText joins adjacent plain spans.
func MergeText(spans []Span) []Span {
	out := spans[:0:0]
	for _, s := range spans {
		if s.Style == StylePlain && len(s.Children) == 0 && s.Link == nil {
			if s.Text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Style == StylePlain && len(out[n-1].Children) == 0 && out[n-1].Link == nil {
				out[n-1].Text += s.Text
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// TrimSpans trims leading and trailing whitespace from the outer plain spans.
func TrimSpans(spans []Span) []Span {
	spans = MergeText(spans)
	if len(spans) == 0 {
		return spans
	}
	if spans[0].Style == StylePlain && spans[0].Link == nil {
		spans[0].Text = strings.TrimLeft(spans[0].Text, " \t\n")
	}
	last := len(spans) - 1
	if spans[last].Style == StylePlain && spans[last].Link == nil {
		spans[last].Text = strings.TrimRight(spans[last].Text, " \t\n")
	}
	return MergeText(spans)
}

// SoleLink reports the link when spans consist of exactly one link span,
// ignoring surrounding whitespace.
func SoleLink(spans []Span) (*Link, bool) {
	var found *Link
	for _, s := range spans {
		switch {
		case s.Link != nil:
			if found != nil {
				return nil, false
			}
			found = s.Link
		case s.Style == StylePlain && len(s.Children) == 0 && strings.TrimSpace(s.Text) == "":
		default:
			return nil, false
		}
	}
	return found, found != nil
}
