// CLAUDE:SUMMARY SQLite store for snapshots (with head pointers), summaries and the fetch log.
// Package store is the SQLite persistence layer: the append-only snapshot
// history with its per-target head pointer, the summaries produced by the
// analysis step, and the fetch log.
package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that require a row.
var ErrNotFound = errors.New("store: not found")

// Store wraps an opened database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
// ApplySchema must have been run on db.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
