package resolver

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeID maps a slash-separated logical path to identifier form:
// Unicode NFC, case-folded, whitespace runs replaced by '-'.
func NormalizeID(p string) string {
	p = norm.NFC.String(strings.Trim(p, "/"))
	// A Caser keeps state, so each call gets its own.
	p = cases.Fold().String(p)
	return strings.Join(strings.Fields(p), "-")
}

// CanonicalID derives a document identifier from its path relative to the
// corpus root: "Type/Hash Map.rakudoc" becomes "type/hash-map".
func CanonicalID(rel string) string {
	return NormalizeID(strings.TrimSuffix(rel, path.Ext(rel)))
}
