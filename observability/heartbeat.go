// Package observability records liveness of long-running rivalwatch
// workers in SQLite, so the HTTP health endpoint can tell whether the
// watch loop is still beating.
package observability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int
	MemoryAllocMB   float64
	MemorySysMB     float64
	GCCount         uint32
}

// CollectRuntimeMetrics reads current Go runtime stats.
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:     float64(mem.Sys) / 1024 / 1024,
		GCCount:         mem.NumGC,
	}
}

// HeartbeatWriter writes periodic liveness probes to worker_heartbeats.
// Each row carries the number of completed runs reported through Beat.
type HeartbeatWriter struct {
	db         *sql.DB
	workerName string
	hostname   string
	workerPID  int
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time

	runs     atomic.Int64
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHeartbeatWriter creates a writer. A nil logger uses slog.Default.
func NewHeartbeatWriter(db *sql.DB, workerName string, interval time.Duration, logger *slog.Logger) *HeartbeatWriter {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatWriter{
		db:         db,
		workerName: workerName,
		hostname:   hostname,
		workerPID:  os.Getpid(),
		interval:   interval,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the heartbeat goroutine. It writes one heartbeat
// immediately, then repeats at the configured interval until Stop or
// context cancellation.
func (hw *HeartbeatWriter) Start(ctx context.Context) {
	go hw.loop(ctx)
}

// Beat records a completed run and writes a heartbeat right away.
func (hw *HeartbeatWriter) Beat(ctx context.Context) {
	hw.runs.Add(1)
	if err := hw.WriteHeartbeat(ctx); err != nil {
		hw.logger.Warn("observability: heartbeat failed", "worker", hw.workerName, "error", err)
	}
}

// WriteHeartbeat writes a single heartbeat row with current runtime metrics.
func (hw *HeartbeatWriter) WriteHeartbeat(ctx context.Context) error {
	m := CollectRuntimeMetrics()
	_, err := hw.db.ExecContext(ctx, `
		INSERT INTO worker_heartbeats (
			worker_name, hostname, worker_pid, timestamp, runs,
			goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		hw.workerName, hw.hostname, hw.workerPID, hw.now().UnixMilli(), hw.runs.Load(),
		m.GoroutinesCount, m.MemoryAllocMB, m.MemorySysMB, m.GCCount)
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

// Stop signals the heartbeat goroutine to exit and waits for it. It is safe
// to call more than once.
func (hw *HeartbeatWriter) Stop() {
	hw.stopOnce.Do(func() { close(hw.stop) })
	<-hw.done
}

func (hw *HeartbeatWriter) loop(ctx context.Context) {
	defer close(hw.done)
	ticker := time.NewTicker(hw.interval)
	defer ticker.Stop()

	if err := hw.WriteHeartbeat(ctx); err != nil {
		hw.logger.Warn("observability: heartbeat failed", "worker", hw.workerName, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hw.stop:
			return
		case <-ticker.C:
			if err := hw.WriteHeartbeat(ctx); err != nil && ctx.Err() == nil {
				hw.logger.Warn("observability: heartbeat failed", "worker", hw.workerName, "error", err)
			}
		}
	}
}

// HeartbeatStatus is the latest heartbeat for a worker with a staleness
// verdict.
type HeartbeatStatus struct {
	WorkerName      string    `json:"workerName"`
	Hostname        string    `json:"hostname"`
	PID             int       `json:"pid"`
	Timestamp       time.Time `json:"timestamp"`
	Runs            int64     `json:"runs"`
	GoroutinesCount int       `json:"goroutines"`
	MemoryAllocMB   float64   `json:"memoryAllocMB"`
	Alive           bool      `json:"alive"`
	StaleFor        string    `json:"staleFor,omitempty"`
}

// LatestHeartbeat returns the most recent heartbeat for the given worker,
// judged against now. A beat older than staleness is reported not alive.
// Returns nil, nil if no heartbeat has been recorded yet.
func LatestHeartbeat(ctx context.Context, db *sql.DB, workerName string, staleness time.Duration, now time.Time) (*HeartbeatStatus, error) {
	row := db.QueryRowContext(ctx, `
		SELECT worker_name, hostname, worker_pid, timestamp, runs,
		       goroutines_count, memory_alloc_mb
		FROM worker_heartbeats
		WHERE worker_name = ?
		ORDER BY timestamp DESC LIMIT 1`, workerName)

	var hs HeartbeatStatus
	var ts int64
	err := row.Scan(&hs.WorkerName, &hs.Hostname, &hs.PID, &ts, &hs.Runs,
		&hs.GoroutinesCount, &hs.MemoryAllocMB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest heartbeat: %w", err)
	}

	hs.Timestamp = time.UnixMilli(ts).UTC()
	age := now.Sub(hs.Timestamp)
	hs.Alive = age <= staleness
	if !hs.Alive {
		hs.StaleFor = (age - staleness).Round(time.Second).String()
	}
	return &hs, nil
}

// CleanupHeartbeats deletes heartbeats older than the retention window.
func CleanupHeartbeats(ctx context.Context, db *sql.DB, retention time.Duration, now time.Time) (int64, error) {
	threshold := now.Add(-retention).UnixMilli()
	result, err := db.ExecContext(ctx, "DELETE FROM worker_heartbeats WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup heartbeats: %w", err)
	}
	return result.RowsAffected()
}
