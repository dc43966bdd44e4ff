package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/toc"
)

// schemePattern matches "https://..." style targets; knownSchemes covers the
// opaque forms like "mailto:". "IO::Path" is neither.
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

var knownSchemes = map[string]bool{
	"mailto": true, "irc": true, "ircs": true, "news": true, "tel": true,
	"data": true, "urn": true, "file": true,
}

// IsExternal reports whether a link target is a URL that is never looked up.
func IsExternal(target string) bool {
	if schemePattern.MatchString(target) {
		return true
	}
	scheme, rest, ok := strings.Cut(target, ":")
	return ok && knownSchemes[strings.ToLower(scheme)] && !strings.HasPrefix(rest, ":")
}

// Resolve rewrites every pending link of every document against the table.
// Links that already left the pending state are skipped. It returns the
// unresolved-reference and broken-anchor warnings, in document order.
func Resolve(docs []*doctree.Document, t *SymbolTable) []diag.Diagnostic {
	var warnings []diag.Diagnostic
	for _, doc := range docs {
		for _, l := range doc.Links() {
			ref, explicitFragment := t.lookup(doc, l.Target)
			if err := l.Resolve(ref); errors.Is(err, doctree.ErrAlreadyResolved) {
				continue
			}
			switch {
			case ref.State == doctree.RefUnresolved:
				msg := fmt.Sprintf("unresolved reference %q", l.Target)
				if names := t.ambiguous(l.Target); len(names) > 0 {
					msg += ": bare name is ambiguous between " + strings.Join(names, ", ")
				}
				warnings = append(warnings, at(doc, diag.Warning(diag.KindUnresolvedReference, l.Line, "%s", msg)))
			case ref.State == doctree.RefResolved && explicitFragment && !t.HasAnchor(ref.DocID, ref.Fragment):
				warnings = append(warnings, at(doc, diag.Warning(diag.KindBrokenAnchor, l.Line,
					"link %q: %s has no section %q", l.Target, ref.DocID, ref.Fragment)))
			}
		}
	}
	return warnings
}

// Run builds the symbol table and resolves all links: the two phases of
// cross-reference resolution. Warnings from both phases are returned.
func Run(ctx context.Context, docs []*doctree.Document) (*SymbolTable, []diag.Diagnostic, error) {
	t, warnings, err := Build(ctx, docs)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, Resolve(docs, t)...)
	return t, warnings, nil
}

// lookup resolves one target from the point of view of doc. Order: URL,
// same-document fragment, exact symbol, document id, then the target with
// its first path segment removed ("/type/Str" tries "Str"). The second
// result reports whether the fragment came from the target itself.
func (t *SymbolTable) lookup(from *doctree.Document, target string) (doctree.Reference, bool) {
	if IsExternal(target) {
		return doctree.Reference{State: doctree.RefExternal}, false
	}

	p, frag, _ := strings.Cut(target, "#")
	p = strings.TrimSpace(p)
	frag = strings.TrimSpace(frag)
	explicit := frag != ""

	if p == "" {
		return doctree.Reference{
			State:    doctree.RefResolved,
			DocID:    from.ID,
			Fragment: t.fragment(from.ID, frag),
		}, explicit
	}

	if ref, ok := t.find(p, frag); ok {
		return ref, explicit
	}
	trimmed := strings.Trim(p, "/")
	if _, rest, ok := strings.Cut(trimmed, "/"); ok && rest != "" {
		if ref, ok := t.find(rest, frag); ok {
			return ref, explicit
		}
	}
	return doctree.Reference{State: doctree.RefUnresolved}, false
}

func (t *SymbolTable) find(p, frag string) (doctree.Reference, bool) {
	if def, ok := t.symbols[p]; ok {
		return t.symbolRef(def, frag), true
	}
	if id, ok := t.documentByPath(p); ok {
		return doctree.Reference{State: doctree.RefResolved, DocID: id, Fragment: t.fragment(id, frag)}, true
	}
	if names := t.short[p]; len(names) == 1 {
		return t.symbolRef(t.symbols[names[0]], frag), true
	}
	return doctree.Reference{}, false
}

// ambiguous returns, sorted, the qualified routines a bare target could
// mean when more than one claims it.
func (t *SymbolTable) ambiguous(target string) []string {
	p, _, _ := strings.Cut(target, "#")
	p = strings.Trim(strings.TrimSpace(p), "/")
	candidates := []string{p}
	if _, rest, ok := strings.Cut(p, "/"); ok && rest != "" {
		candidates = append(candidates, rest)
	}
	for _, c := range candidates {
		if names := t.short[c]; len(names) > 1 {
			out := slices.Clone(names)
			slices.Sort(out)
			return out
		}
	}
	return nil
}

func (t *SymbolTable) symbolRef(def Definition, frag string) doctree.Reference {
	ref := doctree.Reference{State: doctree.RefResolved, DocID: def.DocID, Symbol: def.Name, Fragment: def.Anchor}
	if frag != "" {
		ref.Fragment = t.fragment(def.DocID, frag)
	}
	return ref
}

// fragment maps heading text written in a link ("#method chars") to the
// anchor it produces when that anchor exists.
func (t *SymbolTable) fragment(docID, frag string) string {
	if frag == "" || t.HasAnchor(docID, frag) {
		return frag
	}
	if a := toc.Anchor(frag); t.HasAnchor(docID, a) {
		return a
	}
	return frag
}
