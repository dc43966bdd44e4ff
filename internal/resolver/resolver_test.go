package resolver

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/parser"
)

func podDoc(t *testing.T, path, src string) *doctree.Document {
	t.Helper()
	doc, err := (&parser.PodParser{}).Parse(strings.NewReader(src), path)
	require.NoError(t, err)
	doc.ID = CanonicalID(path)
	return doc
}

const strSource = `=TITLE class Str

=head1 Methods

=head2 method chars

=head2 multi method codes

=head2 method chars
`

func TestRun_DefinitionInOtherDocument(t *testing.T) {
	docA := podDoc(t, "DocA.rakudoc", "=TITLE class Foo\n\nFoo things.\n")
	docB := podDoc(t, "DocB.rakudoc", "=TITLE B\n\nSee L<Foo>.\n")

	_, warnings, err := Run(context.Background(), []*doctree.Document{docA, docB})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	ref := docB.Links()[0].Ref()
	assert.Equal(t, doctree.RefResolved, ref.State)
	assert.Equal(t, "doca", ref.DocID)
	assert.Equal(t, "Foo", ref.Symbol)
}

func TestRun_MissingDefinitionIsUnresolved(t *testing.T) {
	docB := podDoc(t, "DocB.rakudoc", "=TITLE B\n\nSee L<Foo>.\n")

	_, warnings, err := Run(context.Background(), []*doctree.Document{docB})
	require.NoError(t, err)

	assert.Equal(t, doctree.RefUnresolved, docB.Links()[0].Ref().State)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.KindUnresolvedReference, warnings[0].Kind)
	assert.Equal(t, "DocB.rakudoc", warnings[0].Path)
	assert.Equal(t, 3, warnings[0].Line)
}

func TestCollectDefinitions(t *testing.T) {
	doc := podDoc(t, "type/Str.rakudoc", strSource+"\n=head2 class Str::Inner\n\n=head2 sub helper($x)\n")

	defs := CollectDefinitions(doc)
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Str", "Str.chars", "Str.codes", "Str::Inner", "Str::Inner.helper"}, names)

	assert.Equal(t, "method_chars", defs[1].Anchor)
	assert.Equal(t, "method", defs[1].Declarator)
	assert.Equal(t, "method", defs[2].Declarator)
	assert.Equal(t, "type/str", defs[0].DocID)
}

func TestCollectDefinitions_NoOwner(t *testing.T) {
	doc := podDoc(t, "language/ops.rakudoc", "=TITLE Operators\n\n=head1 infix +\n\n=head1 sub say(*@args)\n")

	defs := CollectDefinitions(doc)
	require.Len(t, defs, 2)
	assert.Equal(t, "+", defs[0].Name)
	assert.Equal(t, "say", defs[1].Name)
}

func TestBuild_DuplicateFirstWins(t *testing.T) {
	a := podDoc(t, "a.rakudoc", "=TITLE class Foo\n")
	b := podDoc(t, "b.rakudoc", "=TITLE role Foo\n")

	table, warnings, err := Build(context.Background(), []*doctree.Document{a, b})
	require.NoError(t, err)
	def, ok := table.Lookup("Foo")
	require.True(t, ok)
	assert.Equal(t, "a", def.DocID)
	require.Len(t, warnings, 1)
	assert.Equal(t, diag.KindDuplicateDefinition, warnings[0].Kind)
	assert.Equal(t, "b.rakudoc", warnings[0].Path)

	table, _, err = Build(context.Background(), []*doctree.Document{b, a})
	require.NoError(t, err)
	def, _ = table.Lookup("Foo")
	assert.Equal(t, "b", def.DocID)
}

func TestBuild_OrderIndependent(t *testing.T) {
	docs := []*doctree.Document{
		podDoc(t, "type/Str.rakudoc", strSource),
		podDoc(t, "type/Int.rakudoc", "=TITLE class Int\n\n=head2 method abs\n"),
		podDoc(t, "type/Cool.rakudoc", "=TITLE class Cool\n\n=head2 routine chars\n"),
		podDoc(t, "type/Positional.rakudoc", "=TITLE role Positional\n"),
		podDoc(t, "language/intro.rakudoc", "=TITLE Introduction\n\nL<Str>\n"),
	}
	want, _, err := Build(context.Background(), docs)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10; i++ {
		shuffled := append([]*doctree.Document(nil), docs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, warnings, err := Build(context.Background(), shuffled)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, want.Symbols(), got.Symbols())
	}
}

func TestResolve_AmbiguousBareName(t *testing.T) {
	sources := map[string]string{
		"type/Cool.rakudoc":  "=TITLE class Cool\n\n=head2 routine chars\n",
		"type/Str.rakudoc":   "=TITLE class Str\n\n=head2 method chars\n\n=head2 method flip\n",
		"language/guide.pod": "=TITLE Guide\n\nL<chars>\n\nL<flip>\n",
	}
	orders := [][]string{
		{"type/Cool.rakudoc", "type/Str.rakudoc", "language/guide.pod"},
		{"type/Str.rakudoc", "language/guide.pod", "type/Cool.rakudoc"},
		{"language/guide.pod", "type/Cool.rakudoc", "type/Str.rakudoc"},
	}
	for _, order := range orders {
		var docs []*doctree.Document
		var guide *doctree.Document
		for _, p := range order {
			doc := podDoc(t, p, sources[p])
			if p == "language/guide.pod" {
				guide = doc
			}
			docs = append(docs, doc)
		}

		_, warnings, err := Run(context.Background(), docs)
		require.NoError(t, err)

		links := guide.Links()
		require.Len(t, links, 2)
		assert.Equal(t, doctree.RefUnresolved, links[0].Ref().State, "order %v", order)
		assert.Equal(t, doctree.RefResolved, links[1].Ref().State)
		assert.Equal(t, "type/str", links[1].Ref().DocID)

		require.Equal(t, 1, diag.Count(warnings, diag.KindUnresolvedReference))
		for _, w := range warnings {
			if w.Kind == diag.KindUnresolvedReference {
				assert.Contains(t, w.Message, "bare name is ambiguous between Cool.chars, Str.chars")
			}
		}
	}
}

func TestResolve_Lookups(t *testing.T) {
	str := podDoc(t, "type/Str.rakudoc", strSource)
	src := `=TITLE Guide

=head1 Usage

L<Str>

L</type/Str>

L<chars|/routine/chars>

L<Str.codes>

L<section|#Usage>

L<Raku|https://raku.org>

L<IO::Path>

L<methods|/type/Str#Methods>

L<chars|Str#method chars>

L<gone|Str#nope>
`
	guide := podDoc(t, "language/guide.rakudoc", src)

	_, warnings, err := Run(context.Background(), []*doctree.Document{str, guide})
	require.NoError(t, err)

	links := guide.Links()
	require.Len(t, links, 10)
	refs := make([]doctree.Reference, len(links))
	for i, l := range links {
		refs[i] = l.Ref()
	}

	assert.Equal(t, doctree.Reference{State: doctree.RefResolved, DocID: "type/str", Symbol: "Str"}, refs[0])
	assert.Equal(t, doctree.Reference{State: doctree.RefResolved, DocID: "type/str"}, refs[1])
	assert.Equal(t, doctree.Reference{State: doctree.RefResolved, DocID: "type/str", Symbol: "Str.chars", Fragment: "method_chars"}, refs[2])
	assert.Equal(t, "Str.codes", refs[3].Symbol)
	assert.Equal(t, doctree.Reference{State: doctree.RefResolved, DocID: "language/guide", Fragment: "Usage"}, refs[4])
	assert.Equal(t, doctree.RefExternal, refs[5].State)
	assert.Equal(t, doctree.RefUnresolved, refs[6].State)
	assert.Equal(t, "Methods", refs[7].Fragment)
	assert.Equal(t, "method_chars", refs[8].Fragment)
	assert.Equal(t, doctree.RefResolved, refs[9].State)

	require.Len(t, warnings, 2)
	assert.Equal(t, diag.KindUnresolvedReference, warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, "IO::Path")
	assert.Equal(t, diag.KindBrokenAnchor, warnings[1].Kind)
	assert.Equal(t, "language/guide", warnings[1].DocID)
}

func TestResolve_Once(t *testing.T) {
	a := podDoc(t, "a.rakudoc", "=TITLE class Foo\n\nL<Foo> L<Bar>\n")
	docs := []*doctree.Document{a}

	table, _, err := Run(context.Background(), docs)
	require.NoError(t, err)
	before := a.Links()[0].Ref()

	assert.Empty(t, Resolve(docs, table), "already-resolved links are not reported again")
	assert.Equal(t, before, a.Links()[0].Ref())
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, []*doctree.Document{podDoc(t, "a.rakudoc", "=TITLE class Foo\n")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsExternal(t *testing.T) {
	assert.True(t, IsExternal("https://raku.org"))
	assert.True(t, IsExternal("mailto:someone@example.com"))
	assert.False(t, IsExternal("IO::Path"))
	assert.False(t, IsExternal("/type/Str"))
	assert.False(t, IsExternal("Str:D"))
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "type/hash-map", CanonicalID("Type/Hash Map.rakudoc"))
	assert.Equal(t, "café", CanonicalID("Café.pod6"))
	assert.Equal(t, "strasse", CanonicalID("Straße.md"))
	assert.Equal(t, "type/str.rakudoc", NormalizeID("/type/Str.rakudoc"))
}
