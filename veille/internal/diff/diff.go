// Package diff decides whether a new snapshot differs from the previous one
// and describes how, in short human-readable statements.
package diff

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

// Kind of a change report.
type Kind string

const (
	KindNew     Kind = "new"
	KindChanged Kind = "changed"
)

// SignificantDelta is the excerpt length difference, in characters, above
// which a content change is reported as significant.
const SignificantDelta = 100

// Change statements with no variable part.
const (
	InitialMessage    = "Initial monitoring setup for this URL"
	MinorMessage      = "Minor content updates detected"
	StructuralMessage = "Content structure or formatting changes detected"
)

// Report describes a detected change. A nil *Report means unchanged.
type Report struct {
	Kind     Kind            `json:"type"`
	Changes  []string        `json:"changes"`
	Snapshot *store.Snapshot `json:"snapshot"`
	Previous *store.Snapshot `json:"previous,omitempty"`
}

// Detect compares next against prev. With no prev the target is new. Equal
// hashes mean unchanged and return nil. Otherwise the report lists every
// difference Compare finds.
func Detect(prev, next *store.Snapshot) *Report {
	if prev == nil {
		return &Report{Kind: KindNew, Changes: []string{InitialMessage}, Snapshot: next}
	}
	if prev.Hash == next.Hash {
		return nil
	}
	return &Report{
		Kind:     KindChanged,
		Changes:  Compare(prev.Content, next.Content),
		Snapshot: next,
		Previous: prev,
	}
}

// Compare lists the differences between two contents, in a fixed order:
// title, added headlines, removed headlines, excerpt. When none of those
// differ the result is a single structural-change statement.
func Compare(old, cur normalize.Content) []string {
	var changes []string

	if old.Title != cur.Title {
		changes = append(changes, fmt.Sprintf(`Title changed: "%s" → "%s"`, old.Title, cur.Title))
	}

	if added := missingFrom(cur.Headlines, old.Headlines); len(added) > 0 {
		changes = append(changes, "New headlines: "+strings.Join(added, ", "))
	}
	if removed := missingFrom(old.Headlines, cur.Headlines); len(removed) > 0 {
		changes = append(changes, "Removed headlines: "+strings.Join(removed, ", "))
	}

	if old.Content != cur.Content {
		delta := len([]rune(cur.Content)) - len([]rune(old.Content))
		if delta < 0 {
			delta = -delta
		}
		if delta > SignificantDelta {
			changes = append(changes, fmt.Sprintf("Significant content changes detected (%d character difference)", delta))
		} else {
			changes = append(changes, MinorMessage)
		}
	}

	if len(changes) == 0 {
		changes = append(changes, StructuralMessage)
	}
	return changes
}

// missingFrom returns the distinct items of a that are not in b, in order
// of first appearance in a.
func missingFrom(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	var out []string
	for _, s := range a {
		if _, ok := inB[s]; ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
