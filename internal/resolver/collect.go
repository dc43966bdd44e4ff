package resolver

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/toc"
)

var typeDeclarators = map[string]bool{
	"class": true, "role": true, "module": true, "grammar": true,
	"enum": true, "subset": true, "package": true, "native": true,
}

var routineDeclarators = map[string]bool{
	"method": true, "routine": true, "sub": true, "submethod": true, "multi": true,
	"trait": true, "infix": true, "prefix": true, "postfix": true, "circumfix": true, "term": true,
}

// CollectDefinitions returns the constructs a document declares, in source
// order. A title such as "class Str" defines Str; headings with a type
// declarator define further types; routine headings define "Owner.name"
// under the nearest preceding type, or a bare name when there is none.
func CollectDefinitions(doc *doctree.Document) []Definition {
	var out []Definition
	seen := make(map[string]bool)
	add := func(d Definition) {
		if d.Name == "" || seen[d.Name] {
			return
		}
		seen[d.Name] = true
		d.DocID = doc.ID
		out = append(out, d)
	}

	owner := ""
	if decl, name, ok := typeDeclaration(doc.Title); ok {
		owner = name
		add(Definition{Name: name, Declarator: decl})
	}

	for _, h := range doc.Headings() {
		text := h.Text()
		if decl, name, ok := typeDeclaration(text); ok {
			owner = name
			add(Definition{Name: name, Declarator: decl, Anchor: h.Anchor, Line: h.Line})
			continue
		}
		if decl, name, ok := routineDeclaration(text); ok {
			if owner != "" {
				name = owner + "." + name
			}
			add(Definition{Name: name, Declarator: decl, Anchor: h.Anchor, Line: h.Line})
		}
	}
	return out
}

// typeDeclaration parses "class IO::Path" or "role Positional[::T]".
func typeDeclaration(text string) (string, string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 || !typeDeclarators[fields[0]] {
		return "", "", false
	}
	name, _, _ := strings.Cut(fields[1], "[")
	return fields[0], name, name != ""
}

// routineDeclaration parses "method chars", "multi sub foo($x)" or "infix +".
func routineDeclaration(text string) (string, string, bool) {
	fields := strings.Fields(text)
	// "multi method", "proto sub" and "only sub" qualify the declarator.
	if len(fields) >= 3 && (fields[0] == "multi" || fields[0] == "proto" || fields[0] == "only") && routineDeclarators[fields[1]] {
		fields = fields[1:]
	}
	if len(fields) < 2 || !routineDeclarators[fields[0]] {
		return "", "", false
	}
	name := fields[1]
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	return fields[0], name, true
}

// Build collects definitions from every document in parallel, then merges
// them in the given order. When two documents define the same name the
// first one wins and the later one gets a duplicate-definition warning.
// Every qualified routine is also indexed by its bare name; a bare name
// claimed by more than one routine never resolves.
func Build(ctx context.Context, docs []*doctree.Document) (*SymbolTable, []diag.Diagnostic, error) {
	collected := make([][]Definition, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			collected[i] = CollectDefinitions(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	t := newSymbolTable()
	var warnings []diag.Diagnostic
	for i, doc := range docs {
		if _, dup := t.docs[doc.ID]; dup {
			warnings = append(warnings, at(doc, diag.Warning(diag.KindDuplicateDefinition, 0,
				"document id %q already used by %s; document ignored for lookups", doc.ID, t.docs[doc.ID].Path)))
			continue
		}
		t.docs[doc.ID] = doc
		t.order = append(t.order, doc.ID)
		t.anchors[doc.ID] = toc.Anchors(doc)

		for _, def := range collected[i] {
			if prev, ok := t.symbols[def.Name]; ok {
				warnings = append(warnings, at(doc, diag.Warning(diag.KindDuplicateDefinition, def.Line,
					"%s %q already defined in %s", def.Declarator, def.Name, prev.DocID)))
				continue
			}
			t.symbols[def.Name] = def
			if _, bare, ok := strings.Cut(def.Name, "."); ok && routineDeclarators[def.Declarator] {
				t.short[bare] = append(t.short[bare], def.Name)
			}
		}
	}
	return t, warnings, nil
}

func at(doc *doctree.Document, d diag.Diagnostic) diag.Diagnostic {
	d.DocID = doc.ID
	d.Path = doc.Path
	return d
}
