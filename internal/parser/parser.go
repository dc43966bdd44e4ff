package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/toc"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// MalformedMarkupError reports a construct that cannot be parsed, such as an
// unterminated code block. It is scoped to one document.
type MalformedMarkupError struct {
	Path     string
	Line     int
	Expected string
	Found    string
}

func (e *MalformedMarkupError) Error() string {
	msg := fmt.Sprintf("%s:%d: malformed markup: expected %s", e.Path, e.Line, e.Expected)
	if e.Found != "" {
		msg += ", found " + e.Found
	}
	return msg
}

// DefaultExtensions lists the structured-text formats discovered by default.
var DefaultExtensions = []string{".rakudoc", ".pod6", ".pod", ".md", ".markdown", ".html", ".htm", ".txt"}

// ImportExtensions lists binary formats that can be enabled explicitly.
var ImportExtensions = []string{".docx", ".pdf"}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".rakudoc", ".pod6", ".pod":
		return &PodParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks whether filename has one of the allowed
// extensions. A nil allow list means DefaultExtensions.
func IsSupportedExtension(filename string, allowed []string) bool {
	if allowed == nil {
		allowed = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

// finish applies the steps shared by every format: title fallback, heading
// anchors and heading-level warnings.
func finish(doc *doctree.Document, format, filename string) *doctree.Document {
	doc.Format = format
	doc.Path = filepath.ToSlash(filename)
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		doc.Title = titleFromFilename(filename)
	}
	toc.Assign(doc)
	doc.Warnings = append(doc.Warnings, toc.CheckLevels(doc)...)
	for i := range doc.Warnings {
		doc.Warnings[i].Path = doc.Path
	}
	return doc
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// paragraphBlock turns inline spans into a Paragraph, or a LinkBlock when the
// spans are a single link.
func paragraphBlock(spans []doctree.Span, line int) doctree.Block {
	if l, ok := doctree.SoleLink(spans); ok {
		return &doctree.LinkBlock{Link: l, Line: line}
	}
	return &doctree.Paragraph{Spans: spans, Line: line}
}

func linkSpan(l *doctree.Link) doctree.Span {
	return doctree.Span{Style: doctree.StyleLink, Children: l.Label, Link: l}
}
