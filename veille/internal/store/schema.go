package store

import "database/sql"

// Schema is the complete rivalwatch schema. Times are unix milliseconds.
const Schema = `
-- Append-only history of observed page content.
CREATE TABLE IF NOT EXISTS snapshots (
    id             TEXT PRIMARY KEY,
    competitor_id  TEXT NOT NULL,
    url            TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    content_json   TEXT NOT NULL,
    hash           TEXT NOT NULL,
    method         TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_target ON snapshots(competitor_id, url, created_at DESC);

-- Most recent snapshot per (competitor, url).
CREATE TABLE IF NOT EXISTS snapshot_heads (
    competitor_id  TEXT NOT NULL,
    url            TEXT NOT NULL,
    snapshot_id    TEXT NOT NULL REFERENCES snapshots(id),
    updated_at     INTEGER NOT NULL,
    PRIMARY KEY (competitor_id, url)
);

-- Analysed items, from RSS articles and website changes.
CREATE TABLE IF NOT EXISTS summaries (
    id               TEXT PRIMARY KEY,
    competitor_id    TEXT NOT NULL,
    competitor_name  TEXT NOT NULL,
    title            TEXT NOT NULL DEFAULT '',
    summary          TEXT NOT NULL,
    provider         TEXT NOT NULL DEFAULT '',
    source           TEXT NOT NULL,
    source_type      TEXT NOT NULL,
    change_type      TEXT NOT NULL DEFAULT '',
    changes_json     TEXT NOT NULL DEFAULT '[]',
    change_hash      TEXT NOT NULL DEFAULT '',
    pub_date         INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_competitor ON summaries(competitor_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_rss_source ON summaries(source) WHERE source_type = 'rss';
CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_change_hash ON summaries(change_hash) WHERE change_hash != '';

-- One row per fetch outcome.
CREATE TABLE IF NOT EXISTS fetch_log (
    id             TEXT PRIMARY KEY,
    competitor_id  TEXT NOT NULL,
    url            TEXT NOT NULL,
    method         TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    attempts       INTEGER NOT NULL DEFAULT 0,
    hash           TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    error_class    TEXT NOT NULL DEFAULT '',
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    fetched_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_target ON fetch_log(competitor_id, url, fetched_at DESC);
`

// ApplySchema creates the tables and indexes if they do not exist.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
