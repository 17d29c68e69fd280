package store

import (
	"time"

	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
)

// Summary source types.
const (
	SourceRSS     = "rss"
	SourceWebsite = "website"
)

// Fetch log statuses.
const (
	FetchOK        = "ok"
	FetchUnchanged = "unchanged"
	FetchError     = "error"
)

// Snapshot is one immutable observation of a page.
type Snapshot struct {
	ID           string            `json:"id"`
	CompetitorID string            `json:"competitorId"`
	URL          string            `json:"url"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      normalize.Content `json:"content"`
	Hash         string            `json:"hash"`
	Method       string            `json:"method"`
}

// Summary is one analysed item.
type Summary struct {
	ID             string    `json:"id"`
	CompetitorID   string    `json:"competitorId"`
	CompetitorName string    `json:"competitorName"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Provider       string    `json:"provider,omitempty"`
	Source         string    `json:"source"`
	SourceType     string    `json:"sourceType"`
	ChangeType     string    `json:"changeType,omitempty"`
	Changes        []string  `json:"changes,omitempty"`
	ChangeHash     string    `json:"changeHash,omitempty"`
	PubDate        time.Time `json:"pubDate"`
	Date           time.Time `json:"date"`
}

// SummaryFilter narrows ListSummaries. Zero fields match everything.
type SummaryFilter struct {
	CompetitorID string
	SourceType   string
	Limit        int
}

// FetchLogEntry is one fetch outcome.
type FetchLogEntry struct {
	ID           string    `json:"id"`
	CompetitorID string    `json:"competitorId"`
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	Hash         string    `json:"hash,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	ErrorClass   string    `json:"errorClass,omitempty"`
	DurationMs   int64     `json:"durationMs"`
	FetchedAt    time.Time `json:"fetchedAt"`
}
