// Package resolver builds the corpus-wide symbol table and resolves every
// cross-reference against it. Building and resolving are separate phases:
// the table is complete before the first link is looked at.
package resolver

import (
	"sort"
	"strings"

	"github.com/dgallion1/refdoc/internal/doctree"
)

// Definition is a named construct declared by a document.
type Definition struct {
	Name       string `json:"name"`
	Declarator string `json:"declarator"`
	DocID      string `json:"doc_id"`
	Anchor     string `json:"anchor,omitempty"`
	Line       int    `json:"line,omitempty"`
}

// SymbolTable maps canonical symbol names to their defining documents. It is
// built once per run by Build and is read-only afterwards.
type SymbolTable struct {
	symbols map[string]Definition
	// short indexes qualified routines ("Str.chars") by bare name.
	short   map[string][]string
	docs    map[string]*doctree.Document
	order   []string
	anchors map[string]map[string]bool
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols: make(map[string]Definition),
		short:   make(map[string][]string),
		docs:    make(map[string]*doctree.Document),
		anchors: make(map[string]map[string]bool),
	}
}

// Lookup returns the definition of an exact, case-sensitive symbol name.
func (t *SymbolTable) Lookup(name string) (Definition, bool) {
	def, ok := t.symbols[name]
	return def, ok
}

// Document returns the document with the given canonical identifier.
func (t *SymbolTable) Document(id string) (*doctree.Document, bool) {
	doc, ok := t.docs[id]
	return doc, ok
}

// Documents returns every document in discovery order.
func (t *SymbolTable) Documents() []*doctree.Document {
	out := make([]*doctree.Document, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.docs[id])
	}
	return out
}

// HasAnchor reports whether the document has a heading with that anchor.
func (t *SymbolTable) HasAnchor(docID, anchor string) bool {
	return t.anchors[docID][anchor]
}

// Symbols returns all definitions sorted by name.
func (t *SymbolTable) Symbols() []Definition {
	out := make([]Definition, 0, len(t.symbols))
	for _, def := range t.symbols {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefinedBy returns the definitions that a document won, sorted by name.
func (t *SymbolTable) DefinedBy(docID string) []Definition {
	var out []Definition
	for _, def := range t.Symbols() {
		if def.DocID == docID {
			out = append(out, def)
		}
	}
	return out
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int { return len(t.symbols) }

// documentByPath finds a document by identifier, trying the path as given
// and with its extension stripped.
func (t *SymbolTable) documentByPath(p string) (string, bool) {
	for _, id := range []string{NormalizeID(p), CanonicalID(strings.Trim(p, "/"))} {
		if _, ok := t.docs[id]; ok {
			return id, true
		}
	}
	return "", false
}
