package doctree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// RefState is the resolution state of a link target.
type RefState string

const (
	RefPending    RefState = "pending"
	RefResolved   RefState = "resolved"
	RefUnresolved RefState = "unresolved"
	RefExternal   RefState = "external"
)

// ErrAlreadyResolved is returned when a link that already left the pending
// state is resolved again.
var ErrAlreadyResolved = errors.New("link already resolved")

// Reference is where a link points once resolution has run.
type Reference struct {
	State    RefState `json:"state"`
	DocID    string   `json:"doc_id,omitempty"`
	Fragment string   `json:"fragment,omitempty"`
	Symbol   string   `json:"symbol,omitempty"`
}

// Link is a cross-reference from a document to a symbol, a document or a URL.
type Link struct {
	Target string `json:"target"`
	Label  []Span `json:"label,omitempty"`
	Line   int    `json:"line,omitempty"`

	mu  sync.Mutex
	ref Reference
}

// NewLink returns a pending link. An empty label displays the target.
func NewLink(target string, label []Span, line int) *Link {
	target = strings.TrimSpace(target)
	if len(label) == 0 {
		label = []Span{Plain(target)}
	}
	return &Link{Target: target, Label: label, Line: line, ref: Reference{State: RefPending}}
}

// Resolve records the link's reference. It succeeds once; later calls
// return ErrAlreadyResolved and leave the reference untouched.
func (l *Link) Resolve(ref Reference) error {
	if ref.State == RefPending || ref.State == "" {
		return fmt.Errorf("resolve %q: invalid state %q", l.Target, ref.State)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ref.State != RefPending && l.ref.State != "" {
		return fmt.Errorf("resolve %q: %w", l.Target, ErrAlreadyResolved)
	}
	l.ref = ref
	return nil
}

// Ref returns the current reference.
func (l *Link) Ref() Reference {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ref.State == "" {
		return Reference{State: RefPending}
	}
	return l.ref
}

// LabelText is the link's display text without formatting.
func (l *Link) LabelText() string {
	if t := PlainText(l.Label); t != "" {
		return t
	}
	return l.Target
}

// MarshalJSON includes the resolved reference.
func (l *Link) MarshalJSON() ([]byte, error) {
	type linkJSON struct {
		Target string    `json:"target"`
		Label  []Span    `json:"label,omitempty"`
		Line   int       `json:"line,omitempty"`
		Ref    Reference `json:"ref"`
	}
	return json.Marshal(linkJSON{Target: l.Target, Label: l.Label, Line: l.Line, Ref: l.Ref()})
}
