package toc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
)

func heading(level int, text string, line int) *doctree.Heading {
	return &doctree.Heading{Level: level, Spans: []doctree.Span{doctree.Plain(text)}, Line: line}
}

func TestAnchor(t *testing.T) {
	cases := map[string]string{
		"method add_method":         "method_add_method",
		"  Resuming   exceptions ":  "Resuming_exceptions",
		"role Metamodel::Container": "role_Metamodel::Container",
		"sub foo($x, :$y)":          "sub_foox_:y",
		"!!!":                       "",
	}
	for in, want := range cases {
		require.Equal(t, want, Anchor(in), in)
	}
}

func TestAssign_DeduplicatesAnchors(t *testing.T) {
	doc := &doctree.Document{Blocks: []doctree.Block{
		heading(1, "multi method foo", 1),
		heading(1, "multi method foo", 5),
		heading(1, "???", 9),
	}}
	Assign(doc)
	hs := doc.Headings()
	require.Equal(t, "multi_method_foo", hs[0].Anchor)
	require.Equal(t, "multi_method_foo_2", hs[1].Anchor)
	require.Equal(t, "section", hs[2].Anchor)
	require.True(t, Anchors(doc)["multi_method_foo_2"])
}

func TestCheckLevels(t *testing.T) {
	doc := &doctree.Document{Blocks: []doctree.Block{
		heading(2, "Start deep", 1),
		heading(3, "One step", 3),
		heading(1, "Back out", 5),
		heading(3, "Skipped", 7),
	}}
	warnings := CheckLevels(doc)
	require.Len(t, warnings, 1)
	require.Equal(t, diag.KindHeadingLevelSkip, warnings[0].Kind)
	require.Equal(t, 7, warnings[0].Line)
}

func TestBuild_Nesting(t *testing.T) {
	doc := &doctree.Document{Blocks: []doctree.Block{
		heading(1, "Title", 1),
		&doctree.Paragraph{Spans: []doctree.Span{doctree.Plain("intro")}},
		heading(2, "Section A", 3),
		heading(3, "Subsection A1", 5),
		heading(2, "Section B", 7),
	}}
	Assign(doc)
	entries := Build(doc)

	require.Len(t, entries, 1)
	require.Equal(t, "Title", entries[0].Text)
	require.Len(t, entries[0].Children, 2)
	require.Equal(t, "Section A", entries[0].Children[0].Text)
	require.Len(t, entries[0].Children[0].Children, 1)
	require.Equal(t, "Section B", entries[0].Children[1].Text)

	bc := Breadcrumbs(entries)
	require.Equal(t, []string{"Title", "Section A", "Subsection A1"}, bc["Subsection_A1"])
}
