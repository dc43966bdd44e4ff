package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// DOCXParser imports .docx files. Heading styles become headings and other
// paragraphs become paragraphs; a Title style sets the document title.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "refdoc-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	parsed, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &doctree.Document{}
	for _, item := range parsed.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		style := docxStyle(para)
		spans := doctree.TrimSpans(docxSpans(para))
		if len(spans) == 0 {
			continue
		}
		switch level := docxHeadingLevel(style); {
		case strings.EqualFold(style, "Title") && doc.Title == "":
			doc.Title = doctree.PlainText(spans)
		case strings.EqualFold(style, "Subtitle") && doc.Subtitle == "":
			doc.Subtitle = doctree.PlainText(spans)
		case level > 0:
			doc.Blocks = append(doc.Blocks, &doctree.Heading{Level: level, Spans: spans})
		default:
			doc.Blocks = append(doc.Blocks, paragraphBlock(spans, 0))
		}
	}

	return finish(doc, "docx", filename), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxHeadingLevel accepts both "Heading2" and "heading 2".
func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	digits, ok := strings.CutPrefix(s, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

// docxSpans maps bold, italic and underlined runs to styled spans.
func docxSpans(para *docx.Paragraph) []doctree.Span {
	var out []doctree.Span
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var buf strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
		if buf.Len() == 0 {
			continue
		}
		span := doctree.Plain(buf.String())
		if rp := run.RunProperties; rp != nil {
			switch {
			case rp.Bold != nil:
				span = doctree.Span{Style: doctree.StyleStrong, Children: []doctree.Span{span}}
			case rp.Italic != nil:
				span = doctree.Span{Style: doctree.StyleEmphasis, Children: []doctree.Span{span}}
			case rp.Underline != nil:
				span = doctree.Span{Style: doctree.StyleUnderline, Children: []doctree.Span{span}}
			}
		}
		out = append(out, span)
	}
	return doctree.MergeText(out)
}
