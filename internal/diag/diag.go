// Package diag carries the non-fatal findings of a run: parse warnings,
// duplicate definitions, unresolved references and per-document failures.
package diag

import (
	"fmt"
	"sort"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindCorpusDiscovery     Kind = "corpus_discovery"
	KindMalformedMarkup     Kind = "malformed_markup"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindDuplicateDefinition Kind = "duplicate_definition"
	KindHeadingLevelSkip    Kind = "heading_level_skip"
	KindUnknownDirective    Kind = "unknown_directive"
	KindBrokenAnchor        Kind = "broken_anchor"
	KindUnsupportedFormat   Kind = "unsupported_format"
	KindDocumentTooLarge    Kind = "document_too_large"
	KindWriteFailure        Kind = "write_failure"
)

// Severity indicates how a diagnostic affects the run.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // aborts the run
	SeverityError   Severity = "error"   // the document is skipped
	SeverityWarning Severity = "warning" // output is produced, possibly degraded
)

// Diagnostic is a single finding tied to a document and, when known, a line.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	DocID    string   `json:"doc_id,omitempty"`
	Path     string   `json:"path,omitempty"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

// Error builds an error-level diagnostic; the document it names is skipped.
func Error(kind Kind, line int, format string, args ...any) Diagnostic {
	d := Warning(kind, line, format, args...)
	d.Severity = SeverityError
	return d
}

// Warning builds a warning-level diagnostic.
func Warning(kind Kind, line int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: SeverityWarning,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (d Diagnostic) String() string {
	loc := d.Path
	if loc == "" {
		loc = d.DocID
	}
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, d.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s [%s] %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, d.Severity, d.Kind, d.Message)
}

// Sort orders diagnostics by path, line and kind so reports are stable
// regardless of worker scheduling.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Kind < b.Kind
	})
}

// Count returns how many diagnostics have the given kind.
func Count(ds []Diagnostic, kind Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
