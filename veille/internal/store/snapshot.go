package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/rivalwatch/dbopen"
	"github.com/hazyhaar/rivalwatch/idgen"
)

// SaveSnapshot appends snap to the history and moves the head pointer of
// its (competitor, url) to it, in one transaction. Empty ID and Timestamp
// are filled in.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = idgen.Snapshot()
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	content, err := json.Marshal(snap.Content)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot content: %w", err)
	}
	ts := toMillis(snap.Timestamp)

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, competitor_id, url, title, content_json, hash, method, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.CompetitorID, snap.URL, snap.Content.Title,
			string(content), snap.Hash, snap.Method, ts,
		); err != nil {
			return fmt.Errorf("store: insert snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_heads (competitor_id, url, snapshot_id, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(competitor_id, url) DO UPDATE SET
				snapshot_id = excluded.snapshot_id,
				updated_at = excluded.updated_at`,
			snap.CompetitorID, snap.URL, snap.ID, ts,
		); err != nil {
			return fmt.Errorf("store: move snapshot head: %w", err)
		}
		return nil
	})
}

const snapshotColumns = `s.id, s.competitor_id, s.url, s.content_json, s.hash, s.method, s.created_at`

// LastSnapshot returns the most recent snapshot for (competitorID, url), or
// nil if the target was never observed.
func (s *Store) LastSnapshot(ctx context.Context, competitorID, url string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+`
		FROM snapshot_heads h JOIN snapshots s ON s.id = h.snapshot_id
		WHERE h.competitor_id = ? AND h.url = ?`, competitorID, url)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

// GetSnapshot returns the snapshot with the given ID or ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots s WHERE s.id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return snap, err
}

// ListSnapshots returns the history of (competitorID, url), newest first.
// An empty url matches every target of the competitor.
func (s *Store) ListSnapshots(ctx context.Context, competitorID, url string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots s
		WHERE s.competitor_id = ? AND (? = '' OR s.url = ?)
		ORDER BY s.created_at DESC, s.id DESC LIMIT ?`, competitorID, url, url, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (*Snapshot, error) {
	var (
		snap    Snapshot
		content string
		ts      int64
	)
	if err := sc.Scan(&snap.ID, &snap.CompetitorID, &snap.URL, &content,
		&snap.Hash, &snap.Method, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &snap.Content); err != nil {
		return nil, fmt.Errorf("store: decode snapshot %s: %w", snap.ID, err)
	}
	snap.Timestamp = fromMillis(ts)
	return &snap, nil
}
