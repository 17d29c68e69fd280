package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/rivalwatch/dbopen"
	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func snapshotOf(competitor, url, title string, at time.Time) *Snapshot {
	c := normalize.Content{Title: title, URL: url, Content: "body of " + title}
	return &Snapshot{
		CompetitorID: competitor,
		URL:          url,
		Timestamp:    at,
		Content:      c,
		Hash:         normalize.Hash(c),
		Method:       "render",
	}
}

func TestApplySchema_Idempotent(t *testing.T) {
	// WHAT: applying the schema twice succeeds and creates every table.
	// WHY: the CLI applies it on every start.
	db := openTestDB(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	for _, table := range []string{"snapshots", "snapshot_heads", "summaries", "fetch_log"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestLastSnapshot_Empty(t *testing.T) {
	s := NewStore(openTestDB(t))
	snap, err := s.LastSnapshot(context.Background(), "acme", "https://acme.example")
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Fatalf("LastSnapshot = %+v, want nil", snap)
	}
}

func TestSaveSnapshot_HeadFollowsLatest(t *testing.T) {
	// WHAT: the head pointer always resolves to the last saved snapshot of the target.
	// WHY: change detection compares against exactly that snapshot.
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := snapshotOf("acme", "https://acme.example", "v1", t0)
	second := snapshotOf("acme", "https://acme.example", "v2", t0.Add(time.Hour))
	other := snapshotOf("acme", "https://acme.example/blog", "blog", t0.Add(2*time.Hour))
	for _, snap := range []*Snapshot{first, second, other} {
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}

	last, err := s.LastSnapshot(ctx, "acme", "https://acme.example")
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.ID != second.ID {
		t.Fatalf("LastSnapshot = %+v, want %s", last, second.ID)
	}
	if last.Content.Title != "v2" || last.Hash != second.Hash || !last.Timestamp.Equal(second.Timestamp) {
		t.Fatalf("round trip mismatch: %+v", last)
	}
	if normalize.Hash(last.Content) != last.Hash {
		t.Fatal("stored content no longer matches its hash")
	}

	hist, err := s.ListSnapshots(ctx, "acme", "https://acme.example", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].ID != second.ID || hist[1].ID != first.ID {
		t.Fatalf("history = %d entries, want [second first]", len(hist))
	}
}

func TestSaveSnapshot_OtherCompetitorIsolated(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	if err := s.SaveSnapshot(ctx, snapshotOf("acme", "https://shared.example", "a", time.Now())); err != nil {
		t.Fatal(err)
	}
	snap, err := s.LastSnapshot(ctx, "globex", "https://shared.example")
	if err != nil {
		t.Fatal(err)
	}
	if snap != nil {
		t.Fatal("snapshot leaked across competitors")
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	s := NewStore(openTestDB(t))
	if _, err := s.GetSnapshot(context.Background(), "snp_missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertSummary_Dedup(t *testing.T) {
	// WHAT: a second summary for the same RSS link or change hash is ignored.
	// WHY: reruns must not analyse and store the same item twice.
	s := NewStore(openTestDB(t))
	ctx := context.Background()

	rss := &Summary{CompetitorID: "acme", CompetitorName: "Acme", Title: "Post",
		Summary: "text", Source: "https://acme.example/p/1", SourceType: SourceRSS}
	ok, err := s.InsertSummary(ctx, rss)
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	dup := *rss
	dup.ID = ""
	ok, err = s.InsertSummary(ctx, &dup)
	if err != nil || ok {
		t.Fatalf("duplicate insert: ok=%v err=%v", ok, err)
	}
	if has, _ := s.HasRSSSource(ctx, rss.Source); !has {
		t.Fatal("HasRSSSource = false")
	}

	web := &Summary{CompetitorID: "acme", CompetitorName: "Acme", Summary: "text",
		Source: "https://acme.example", SourceType: SourceWebsite, ChangeType: "changed",
		Changes: []string{"Minor content updates detected"}, ChangeHash: "abc"}
	if ok, err := s.InsertSummary(ctx, web); err != nil || !ok {
		t.Fatalf("website insert: ok=%v err=%v", ok, err)
	}
	// Same website URL with a different change is a new summary.
	web2 := *web
	web2.ID, web2.ChangeHash = "", "def"
	if ok, err := s.InsertSummary(ctx, &web2); err != nil || !ok {
		t.Fatalf("second website insert: ok=%v err=%v", ok, err)
	}
	if has, _ := s.HasChangeHash(ctx, "abc"); !has {
		t.Fatal("HasChangeHash(abc) = false")
	}
	if has, _ := s.HasChangeHash(ctx, ""); has {
		t.Fatal("HasChangeHash(\"\") = true")
	}

	all, err := s.ListSummaries(ctx, SummaryFilter{CompetitorID: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("summaries = %d, want 3", len(all))
	}
	sites, err := s.ListSummaries(ctx, SummaryFilter{SourceType: SourceWebsite})
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 2 {
		t.Fatalf("website summaries = %d, want 2", len(sites))
	}
	for _, sum := range sites {
		if len(sum.Changes) != 1 {
			t.Fatalf("changes = %q", sum.Changes)
		}
	}
}

func TestFetchLog(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	entries := []*FetchLogEntry{
		{CompetitorID: "acme", URL: "https://a.example", Method: "render", Status: FetchOK, Attempts: 1, FetchedAt: t0},
		{CompetitorID: "acme", URL: "https://b.example", Status: FetchError, Attempts: 4, ErrorMessage: "boom", FetchedAt: t0.Add(time.Minute)},
		{CompetitorID: "globex", URL: "https://a.example", Status: FetchOK, FetchedAt: t0},
	}
	for _, e := range entries {
		if err := s.InsertFetchLog(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := s.FetchHistory(ctx, "acme", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Status != FetchError {
		t.Fatalf("history = %+v, want 2 entries newest first", hist)
	}
	one, err := s.FetchHistory(ctx, "acme", "https://a.example", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].Method != "render" {
		t.Fatalf("filtered history = %+v", one)
	}
}
