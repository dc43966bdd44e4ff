package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// PDFParser imports PDF files as one level-1 heading per page followed by
// the page's paragraphs. It tries the Go library first, then falls back to
// pdftotext if enabled.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "refdoc-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return finish(pdfDocument(text), "pdf", filename), nil
}

// pdfDocument splits form-feed separated page text into blocks.
func pdfDocument(text string) *doctree.Document {
	doc := &doctree.Document{}
	pages := strings.Split(text, "\f")
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		if len(pages) > 1 {
			doc.Blocks = append(doc.Blocks, &doctree.Heading{
				Level: 1,
				Spans: []doctree.Span{doctree.Plain(fmt.Sprintf("Page %d", i+1))},
			})
		}
		for _, para := range strings.Split(strings.ReplaceAll(page, "\r\n", "\n"), "\n\n") {
			if t := strings.Join(strings.Fields(para), " "); t != "" {
				doc.Blocks = append(doc.Blocks, &doctree.Paragraph{Spans: []doctree.Span{doctree.Plain(t)}})
			}
		}
	}
	return doc
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
