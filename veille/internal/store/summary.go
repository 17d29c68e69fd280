package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/rivalwatch/idgen"
)

// InsertSummary stores sum unless a summary with the same RSS source or
// the same change hash already exists. It reports whether a row was written.
func (s *Store) InsertSummary(ctx context.Context, sum *Summary) (bool, error) {
	if sum.ID == "" {
		sum.ID = idgen.Summary()
	}
	if sum.Date.IsZero() {
		sum.Date = time.Now().UTC()
	}
	changes := sum.Changes
	if changes == nil {
		changes = []string{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return false, fmt.Errorf("store: marshal changes: %w", err)
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO summaries (id, competitor_id, competitor_name, title, summary,
		provider, source, source_type, change_type, changes_json, change_hash, pub_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.CompetitorID, sum.CompetitorName, sum.Title, sum.Summary,
		sum.Provider, sum.Source, sum.SourceType, sum.ChangeType, string(changesJSON),
		sum.ChangeHash, toMillis(sum.PubDate), toMillis(sum.Date),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasRSSSource reports whether an RSS summary for link exists.
func (s *Store) HasRSSSource(ctx context.Context, link string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM summaries WHERE source_type = 'rss' AND source = ? LIMIT 1`, link)
}

// HasChangeHash reports whether a website summary with hash exists.
func (s *Store) HasChangeHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	return s.exists(ctx, `SELECT 1 FROM summaries WHERE change_hash = ? LIMIT 1`, hash)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// ListSummaries returns summaries matching f, newest first.
func (s *Store) ListSummaries(ctx context.Context, f SummaryFilter) ([]*Summary, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	var (
		where []string
		args  []any
	)
	if f.CompetitorID != "" {
		where = append(where, "competitor_id = ?")
		args = append(args, f.CompetitorID)
	}
	if f.SourceType != "" {
		where = append(where, "source_type = ?")
		args = append(args, f.SourceType)
	}
	query := `SELECT id, competitor_id, competitor_name, title, summary, provider, source,
		source_type, change_type, changes_json, change_hash, pub_date, created_at
		FROM summaries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		var (
			sum           Summary
			changesJSON   string
			pub, creation int64
		)
		if err := rows.Scan(&sum.ID, &sum.CompetitorID, &sum.CompetitorName, &sum.Title,
			&sum.Summary, &sum.Provider, &sum.Source, &sum.SourceType, &sum.ChangeType,
			&changesJSON, &sum.ChangeHash, &pub, &creation); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}
		if err := json.Unmarshal([]byte(changesJSON), &sum.Changes); err != nil {
			return nil, fmt.Errorf("store: decode changes of %s: %w", sum.ID, err)
		}
		if len(sum.Changes) == 0 {
			sum.Changes = nil
		}
		sum.PubDate = fromMillis(pub)
		sum.Date = fromMillis(creation)
		out = append(out, &sum)
	}
	return out, rows.Err()
}
