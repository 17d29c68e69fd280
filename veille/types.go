// CLAUDE:SUMMARY Re-exports store and detection types (Snapshot, Summary, FetchLogEntry, ChangeReport) as the veille public API, plus RunReport.
package veille

import (
	"time"

	"github.com/hazyhaar/rivalwatch/veille/internal/diff"
	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

// Re-export store types for public API.
type (
	Content       = normalize.Content
	Snapshot      = store.Snapshot
	Summary       = store.Summary
	SummaryFilter = store.SummaryFilter
	FetchLogEntry = store.FetchLogEntry
	ChangeReport  = diff.Report
)

// Source types of a Summary.
const (
	SourceRSS     = store.SourceRSS
	SourceWebsite = store.SourceWebsite
)

// Run kinds.
const (
	RunWebsites = "websites"
	RunFeeds    = "feeds"
)

// RunReport tallies one pass over the configured competitors.
type RunReport struct {
	Kind       string     `json:"kind"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	Checked    int        `json:"checked"`   // targets fetched, or feed items seen
	Unchanged  int        `json:"unchanged"` // websites whose hash did not move
	Skipped    int        `json:"skipped"`   // already summarised
	Failed     int        `json:"failed"`
	Summaries  []*Summary `json:"summaries"`
}

func (r *RunReport) add(o outcome, sum *Summary) {
	switch o {
	case outcomeUnchanged:
		r.Unchanged++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	case outcomeSummarized:
		r.Summaries = append(r.Summaries, sum)
	}
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeSummarized
)
