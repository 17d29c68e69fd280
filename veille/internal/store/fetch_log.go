package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/rivalwatch/idgen"
)

// InsertFetchLog records a fetch outcome.
func (s *Store) InsertFetchLog(ctx context.Context, entry *FetchLogEntry) error {
	if entry.ID == "" {
		entry.ID = idgen.FetchLog()
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO fetch_log (id, competitor_id, url, method, status, attempts, hash,
		error_message, error_class, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CompetitorID, entry.URL, entry.Method, entry.Status, entry.Attempts,
		entry.Hash, entry.ErrorMessage, entry.ErrorClass, entry.DurationMs, toMillis(entry.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert fetch log: %w", err)
	}
	return nil
}

// FetchHistory returns fetch log entries for a competitor, newest first.
// An empty url matches every target of the competitor.
func (s *Store) FetchHistory(ctx context.Context, competitorID, url string, limit int) ([]*FetchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, competitor_id, url, method, status, attempts, hash,
		error_message, error_class, duration_ms, fetched_at
		FROM fetch_log WHERE competitor_id = ? AND (? = '' OR url = ?)
		ORDER BY fetched_at DESC, id DESC LIMIT ?`, competitorID, url, url, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*FetchLogEntry
	for rows.Next() {
		var (
			e  FetchLogEntry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.CompetitorID, &e.URL, &e.Method, &e.Status,
			&e.Attempts, &e.Hash, &e.ErrorMessage, &e.ErrorClass, &e.DurationMs, &at); err != nil {
			return nil, fmt.Errorf("store: scan fetch log: %w", err)
		}
		e.FetchedAt = fromMillis(at)
		result = append(result, &e)
	}
	return result, rows.Err()
}
