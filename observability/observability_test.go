package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hazyhaar/rivalwatch/dbopen"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func TestCollectRuntimeMetrics(t *testing.T) {
	m := CollectRuntimeMetrics()
	if m.GoroutinesCount <= 0 {
		t.Fatal("goroutines should be > 0")
	}
	if m.MemoryAllocMB <= 0 {
		t.Fatal("memory alloc should be > 0")
	}
}

func TestHeartbeatWriter_BeatCountsRuns(t *testing.T) {
	// WHAT: Beat increments the run counter and persists it with the heartbeat.
	// WHY: The health endpoint reports how many watch runs completed.
	db := setupObsDB(t)
	hw := NewHeartbeatWriter(db, "watch", time.Minute, nil)

	hw.Beat(context.Background())
	hw.Beat(context.Background())

	st, err := LatestHeartbeat(context.Background(), db, "watch", time.Minute, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if st == nil || st.Runs != 2 {
		t.Fatalf("status: %+v", st)
	}
	if !st.Alive || st.StaleFor != "" {
		t.Errorf("fresh beat should be alive: %+v", st)
	}
}

func TestHeartbeatWriter_StartStop(t *testing.T) {
	db := setupObsDB(t)
	hw := NewHeartbeatWriter(db, "loop_worker", 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	hw.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	cancel()
	hw.Stop()
	hw.Stop()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM worker_heartbeats WHERE worker_name='loop_worker'").Scan(&count)
	if count < 2 {
		t.Fatalf("heartbeat count: got %d, want >= 2", count)
	}
}

func TestLatestHeartbeat_Stale(t *testing.T) {
	// WHAT: A beat older than the staleness window is reported not alive.
	// WHY: A dead watch loop must be visible from /health.
	db := setupObsDB(t)
	hw := NewHeartbeatWriter(db, "watch", time.Minute, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hw.now = func() time.Time { return base }
	if err := hw.WriteHeartbeat(context.Background()); err != nil {
		t.Fatal(err)
	}

	st, err := LatestHeartbeat(context.Background(), db, "watch", time.Hour, base.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if st.Alive {
		t.Error("expected stale")
	}
	if st.StaleFor != "2h0m0s" {
		t.Errorf("staleFor: got %q", st.StaleFor)
	}
}

func TestLatestHeartbeat_None(t *testing.T) {
	db := setupObsDB(t)
	st, err := LatestHeartbeat(context.Background(), db, "missing", time.Minute, time.Now())
	if err != nil || st != nil {
		t.Fatalf("got %+v, %v", st, err)
	}
}

func TestCleanupHeartbeats(t *testing.T) {
	db := setupObsDB(t)
	now := time.Now()

	oldTs := now.Add(-40 * 24 * time.Hour).UnixMilli()
	db.Exec(`INSERT INTO worker_heartbeats (worker_name, hostname, worker_pid, timestamp)
		VALUES ('old', 'host', 1, ?)`, oldTs)
	db.Exec(`INSERT INTO worker_heartbeats (worker_name, hostname, worker_pid, timestamp)
		VALUES ('new', 'host', 1, ?)`, now.UnixMilli())

	deleted, err := CleanupHeartbeats(context.Background(), db, 30*24*time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("deleted: got %d", deleted)
	}
}
