// Package render turns resolved documents into hypertext or plaintext.
// Each block kind is drawn by a transform that callers can replace with
// Handle; kinds without a transform fall back to their plain text, so
// rendering never fails on content.
package render

import (
	"fmt"
	"path"
	"strings"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// Format selects the output representation.
type Format string

const (
	Hypertext Format = "hypertext"
	Plaintext Format = "plaintext"
)

// ParseFormat accepts the format names used on the command line and in
// configuration files.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hypertext", "html":
		return Hypertext, nil
	case "plaintext", "text", "txt":
		return Plaintext, nil
	}
	return "", fmt.Errorf("unknown output format %q (want hypertext or plaintext)", s)
}

// Options configures a renderer.
type Options struct {
	Format             Format
	IncludeSourceLinks bool
	// SourceBaseURL, when set, turns source links into hyperlinks:
	// SourceBaseURL + "/" + document path.
	SourceBaseURL string
}

// Symbols is the part of the symbol table a renderer reads.
type Symbols interface {
	Document(id string) (*doctree.Document, bool)
}

// IndexEntry is one document listed on the corpus index page.
type IndexEntry struct {
	DocID    string
	Title    string
	Subtitle string
	Symbols  []string
}

// IndexID is the identifier of the corpus index page.
const IndexID = "_index"

// Renderer produces one output file per document.
type Renderer interface {
	Render(doc *doctree.Document, syms Symbols) ([]byte, error)
	RenderIndex(entries []IndexEntry) ([]byte, error)
	// Extension is the output file extension, including the dot.
	Extension() string
}

// New returns the renderer for opts.Format.
func New(opts Options) (Renderer, error) {
	switch opts.Format {
	case Hypertext, "":
		return NewHTML(opts), nil
	case Plaintext:
		return NewText(opts), nil
	}
	return nil, fmt.Errorf("unknown output format %q", opts.Format)
}

// OutputPath is where a document's output lives, relative to the output root.
func OutputPath(docID, ext string) string {
	return docID + ext
}

// RelativeHref returns the link from one output file to another, with an
// optional fragment. Links within a document are fragment-only.
func RelativeHref(fromID, toID, ext, fragment string) string {
	href := ""
	if toID != fromID {
		href = relPath(path.Dir(fromID), OutputPath(toID, ext))
	}
	if fragment != "" {
		href += "#" + fragment
	}
	return href
}

// relPath is path-only filepath.Rel for slash-separated identifiers.
func relPath(fromDir, to string) string {
	var from []string
	if fromDir != "." && fromDir != "" {
		from = strings.Split(fromDir, "/")
	}
	parts := strings.Split(to, "/")
	i := 0
	for i < len(from) && i < len(parts)-1 && from[i] == parts[i] {
		i++
	}
	var out []string
	for range from[i:] {
		out = append(out, "..")
	}
	return strings.Join(append(out, parts[i:]...), "/")
}

func sourceURL(opts Options, docPath string) string {
	if opts.SourceBaseURL == "" {
		return ""
	}
	return strings.TrimRight(opts.SourceBaseURL, "/") + "/" + strings.TrimLeft(docPath, "/")
}
