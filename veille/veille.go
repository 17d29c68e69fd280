// CLAUDE:SUMMARY Main Service orchestrator: wires fetcher, feed reader, store, analysis and digest writer; read API over snapshots, summaries and the fetch log.
// Package veille tracks the web presence of competitors.
//
// Two passes are offered. MonitorWebsites fetches each configured page,
// detects changes against the last snapshot and has every change analysed.
// DigestFeeds reads each configured feed and has every new article
// analysed. Results are stored in SQLite and optionally written as markdown
// digest files.
package veille

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/rivalwatch/analysis"
	"github.com/hazyhaar/rivalwatch/observability"
	"github.com/hazyhaar/rivalwatch/veille/internal/browser"
	"github.com/hazyhaar/rivalwatch/veille/internal/buffer"
	"github.com/hazyhaar/rivalwatch/veille/internal/feed"
	"github.com/hazyhaar/rivalwatch/veille/internal/fetch"
	"github.com/hazyhaar/rivalwatch/veille/internal/retry"
	"github.com/hazyhaar/rivalwatch/veille/internal/scheduler"
	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

// Fetcher retrieves and normalizes one page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*fetch.Result, error)
}

// FeedReader returns the latest items of a feed.
type FeedReader interface {
	FetchLatest(ctx context.Context, feedURL string, limit int) ([]feed.Article, error)
}

// Analyzer turns content into a summary. It never fails.
type Analyzer interface {
	Summarize(ctx context.Context, content, competitor string) analysis.Result
}

// Service is the main veille orchestrator.
type Service struct {
	config       *Config
	store        *store.Store
	fetcher      Fetcher
	feeds        FeedReader
	analyzer     Analyzer
	digest       *buffer.Writer
	logger       *slog.Logger
	now          func() time.Time
	urlValidator func(string) error
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithFetcher replaces the default render/simple-HTTP fetcher.
func WithFetcher(f Fetcher) ServiceOption {
	return func(svc *Service) { svc.fetcher = f }
}

// WithFeedReader replaces the default feed reader.
func WithFeedReader(r FeedReader) ServiceOption {
	return func(svc *Service) { svc.feeds = r }
}

// WithURLValidator overrides the URL validation function (default: horosafe.ValidateURL).
// Use in tests with httptest servers that listen on loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// WithClock overrides the time source used for snapshot and summary dates.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// New creates a Service over db. The schema is applied if missing. A nil
// cfg uses DefaultConfig; a nil analyzer answers with the rule-based
// analyzer only.
func New(db *sql.DB, cfg *Config, analyzer Analyzer, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("veille: apply schema: %w", err)
	}
	if err := observability.Init(db); err != nil {
		return nil, fmt.Errorf("veille: apply observability schema: %w", err)
	}
	if analyzer == nil {
		analyzer = analysis.New(nil, analysis.WithTimeout(cfg.Analysis.Timeout), analysis.WithLogger(logger))
	}

	svc := &Service{
		config:   cfg,
		store:    store.NewStore(db),
		analyzer: analyzer,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.fetcher == nil {
		svc.fetcher = newFetcher(cfg, svc.urlValidator, logger)
	}
	if svc.feeds == nil {
		svc.feeds = feed.New(feed.Config{URLValidator: svc.urlValidator, Logger: logger})
	}
	if cfg.Storage.DigestDir != "" {
		svc.digest = buffer.NewWriter(cfg.Storage.DigestDir)
	}
	return svc, nil
}

func newFetcher(cfg *Config, validator func(string) error, logger *slog.Logger) *fetch.Fetcher {
	var renderer fetch.Renderer
	if cfg.Fetch.RenderEnabled() {
		renderer = browser.New(browser.Config{
			RemoteURL:         cfg.Browser.Remote,
			Bin:               cfg.Browser.Bin,
			NavigationTimeout: cfg.Fetch.RenderTimeout,
			Settle:            cfg.Fetch.Settle,
			Logger:            logger,
		})
	}
	return fetch.New(fetch.Config{
		Renderer: renderer,
		Retry: retry.Policy{
			MaxAttempts: cfg.Fetch.MaxAttempts,
			BaseDelay:   cfg.Fetch.BaseDelay,
		},
		HTTPTimeout:  cfg.Fetch.HTTPTimeout,
		URLValidator: validator,
		Logger:       logger,
	})
}

// Config returns the effective configuration.
func (svc *Service) Config() *Config {
	return svc.config
}

// Close shuts down the service.
func (svc *Service) Close() error {
	svc.logger.Info("veille: closed")
	return nil
}

// RunAll runs the feed digest then website monitoring.
func (svc *Service) RunAll(ctx context.Context) []RunReport {
	return []RunReport{svc.DigestFeeds(ctx), svc.MonitorWebsites(ctx)}
}

const (
	watchWorker        = "rivalwatch-watch"
	heartbeatInterval  = 30 * time.Second
	heartbeatRetention = 7 * 24 * time.Hour
)

// Watch runs RunAll immediately and then every interval until ctx is
// cancelled. A positive maxRuns stops after that many runs. It returns the
// number of runs started. While running, a heartbeat is written every 30s
// and after each run; /health reports it.
func (svc *Service) Watch(ctx context.Context, every time.Duration, maxRuns int) int {
	hb := observability.NewHeartbeatWriter(svc.store.DB, watchWorker, heartbeatInterval, svc.logger)
	hb.Start(ctx)
	defer hb.Stop()

	job := func(ctx context.Context) error {
		svc.RunAll(ctx)
		if ctx.Err() == nil {
			hb.Beat(ctx)
			svc.pruneHeartbeats(ctx)
		}
		return ctx.Err()
	}
	return scheduler.New(job, scheduler.Config{Interval: every, MaxRuns: maxRuns}, svc.logger).Run(ctx)
}

// pruneHeartbeats drops heartbeats past the retention window. Failures are
// logged only.
func (svc *Service) pruneHeartbeats(ctx context.Context) {
	n, err := observability.CleanupHeartbeats(ctx, svc.store.DB, heartbeatRetention, svc.now())
	if err != nil {
		svc.logger.Warn("veille: prune heartbeats", "error", err)
		return
	}
	if n > 0 {
		svc.logger.Debug("veille: heartbeats pruned", "deleted", n)
	}
}

// WatchStatus returns the latest heartbeat of the watch loop, or nil if no
// watch loop ever ran against this database.
func (svc *Service) WatchStatus(ctx context.Context) (*observability.HeartbeatStatus, error) {
	return observability.LatestHeartbeat(ctx, svc.store.DB, watchWorker, 3*heartbeatInterval, svc.now())
}

// --- Read API ---

// ListSummaries returns stored summaries, newest first.
func (svc *Service) ListSummaries(ctx context.Context, f SummaryFilter) ([]*Summary, error) {
	if f.CompetitorID != "" {
		if _, err := svc.config.Competitor(f.CompetitorID); err != nil {
			return nil, err
		}
	}
	return svc.store.ListSummaries(ctx, f)
}

// LastSnapshot returns the most recent snapshot of a target, or nil if it
// was never captured.
func (svc *Service) LastSnapshot(ctx context.Context, competitorID, pageURL string) (*Snapshot, error) {
	if _, err := svc.config.Competitor(competitorID); err != nil {
		return nil, err
	}
	return svc.store.LastSnapshot(ctx, competitorID, pageURL)
}

// Snapshot returns the snapshot with the given ID, or ErrNotFound.
func (svc *Service) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: snapshot id is required", ErrInvalidInput)
	}
	return svc.store.GetSnapshot(ctx, id)
}

// SnapshotHistory returns the snapshots of a competitor, newest first. An
// empty pageURL matches every target.
func (svc *Service) SnapshotHistory(ctx context.Context, competitorID, pageURL string, limit int) ([]*Snapshot, error) {
	if _, err := svc.config.Competitor(competitorID); err != nil {
		return nil, err
	}
	return svc.store.ListSnapshots(ctx, competitorID, pageURL, limit)
}

// FetchHistory returns fetch log entries of a competitor, newest first. An
// empty pageURL matches every target.
func (svc *Service) FetchHistory(ctx context.Context, competitorID, pageURL string, limit int) ([]*FetchLogEntry, error) {
	if _, err := svc.config.Competitor(competitorID); err != nil {
		return nil, err
	}
	return svc.store.FetchHistory(ctx, competitorID, pageURL, limit)
}
