// Package toc derives heading anchors and the table-of-contents outline of a
// document.
package toc

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
)

// Entry is a node of the outline.
type Entry struct {
	Level    int      `json:"level"`
	Text     string   `json:"text"`
	Anchor   string   `json:"anchor"`
	Children []*Entry `json:"children,omitempty"`
}

// Anchor turns heading text into a fragment identifier: whitespace runs
// become '_', characters other than letters, digits, '-', '_', ':' and '.'
// are dropped. "method add_method" becomes "method_add_method".
func Anchor(text string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_:.", r):
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Assign sets a unique anchor on every heading of doc. Repeated anchors get
// a numeric suffix in source order.
func Assign(doc *doctree.Document) {
	seen := make(map[string]int)
	for _, h := range doc.Headings() {
		base := Anchor(h.Text())
		if base == "" {
			base = "section"
		}
		anchor := base
		if n := seen[base]; n > 0 {
			anchor = base + "_" + strconv.Itoa(n+1)
		}
		seen[base]++
		h.Anchor = anchor
	}
}

// Anchors returns the set of heading anchors of doc.
func Anchors(doc *doctree.Document) map[string]bool {
	out := make(map[string]bool)
	for _, h := range doc.Headings() {
		if h.Anchor != "" {
			out[h.Anchor] = true
		}
	}
	return out
}

// CheckLevels reports headings whose level is more than one step deeper than
// the heading before them. The first heading sets the baseline.
func CheckLevels(doc *doctree.Document) []diag.Diagnostic {
	var out []diag.Diagnostic
	prev := 0
	for _, h := range doc.Headings() {
		if prev > 0 && h.Level-prev > 1 {
			out = append(out, diag.Warning(diag.KindHeadingLevelSkip, h.Line,
				"heading %q jumps from level %d to level %d", h.Text(), prev, h.Level))
		}
		prev = h.Level
	}
	return out
}

// Build nests the document's headings into an outline.
func Build(doc *doctree.Document) []*Entry {
	type stackEntry struct {
		entry *Entry
		level int
	}

	// Root is level 0; all headings nest under it.
	root := &Entry{}
	stack := []stackEntry{{entry: root, level: 0}}

	for _, h := range doc.Headings() {
		e := &Entry{Level: h.Level, Text: h.Text(), Anchor: h.Anchor}

		// Pop until we find a parent with a lower level.
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].entry
		parent.Children = append(parent.Children, e)
		stack = append(stack, stackEntry{entry: e, level: h.Level})
	}
	return root.Children
}

// Breadcrumbs maps each heading anchor to the heading texts leading to it.
func Breadcrumbs(entries []*Entry) map[string][]string {
	out := make(map[string][]string)
	var walk func(es []*Entry, trail []string)
	walk = func(es []*Entry, trail []string) {
		for _, e := range es {
			bc := append(append([]string(nil), trail...), e.Text)
			out[e.Anchor] = bc
			walk(e.Children, bc)
		}
	}
	walk(entries, nil)
	return out
}
