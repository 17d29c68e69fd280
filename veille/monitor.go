// CLAUDE:SUMMARY Website monitoring pass: fetch, snapshot diff, change-hash dedup, throttled analysis and summary persistence.
package veille

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/rivalwatch/veille/internal/diff"
	"github.com/hazyhaar/rivalwatch/veille/internal/fetch"
	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

// defaultWebsiteTitle stands in for a page without a title.
const defaultWebsiteTitle = "Homepage Changes"

// MonitorWebsites checks the first maxWebsitesPerCompetitor pages of every
// competitor, one at a time. Each page is fetched, compared with its last
// snapshot and, when new or changed, analysed and stored as a summary.
// Item failures are logged and counted; they never stop the run.
func (svc *Service) MonitorWebsites(ctx context.Context) RunReport {
	rep := RunReport{Kind: RunWebsites, StartedAt: svc.now().UTC()}
	throttle := newThrottle(svc.config.Monitoring.WebsiteDelay)
	limit := svc.config.Monitoring.MaxWebsitesPerCompetitor

	svc.logger.Info("veille: website monitoring started", "competitors", len(svc.config.Competitors))
	for _, comp := range svc.config.Competitors {
		sites := comp.Sources.Websites
		if len(sites) == 0 {
			svc.logger.Debug("veille: no websites configured", "competitor", comp.ID)
			continue
		}
		if len(sites) > limit {
			sites = sites[:limit]
		}
		for _, site := range sites {
			if ctx.Err() != nil {
				break
			}
			rep.Checked++
			sum, o := svc.monitorWebsite(ctx, comp, site, throttle)
			rep.add(o, sum)
		}
	}
	rep.FinishedAt = svc.now().UTC()
	svc.logger.Info("veille: website monitoring finished",
		"checked", rep.Checked, "summaries", len(rep.Summaries),
		"unchanged", rep.Unchanged, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep
}

func (svc *Service) monitorWebsite(ctx context.Context, comp Competitor, site string, throttle *rate.Limiter) (*Summary, outcome) {
	log := svc.logger.With("competitor", comp.ID, "url", site)
	start := time.Now()
	entry := &store.FetchLogEntry{CompetitorID: comp.ID, URL: site, FetchedAt: svc.now().UTC()}

	res, err := svc.fetcher.Fetch(ctx, site)
	entry.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		entry.Status = store.FetchError
		entry.ErrorMessage = err.Error()
		entry.ErrorClass = string(fetch.Classify(err))
		var exh *fetch.ExhaustedError
		if errors.As(err, &exh) {
			entry.Attempts = exh.Attempts
		}
		log.Warn("veille: fetch failed", "class", entry.ErrorClass, "error", err)
		svc.logFetch(ctx, entry)
		return nil, outcomeFailed
	}
	entry.Method = res.Method
	entry.Attempts = res.Attempts

	snap := &store.Snapshot{
		CompetitorID: comp.ID,
		URL:          site,
		Timestamp:    svc.now().UTC(),
		Content:      res.Content,
		Hash:         normalize.Hash(res.Content),
		Method:       res.Method,
	}
	entry.Hash = snap.Hash

	prev, err := svc.store.LastSnapshot(ctx, comp.ID, site)
	if err != nil {
		log.Error("veille: load last snapshot", "error", err)
		return nil, outcomeFailed
	}

	report := diff.Detect(prev, snap)
	if report == nil {
		entry.Status = store.FetchUnchanged
		svc.logFetch(ctx, entry)
		log.Info("veille: no changes detected")
		return nil, outcomeUnchanged
	}

	if err := svc.store.SaveSnapshot(ctx, snap); err != nil {
		log.Error("veille: save snapshot", "error", err)
		return nil, outcomeFailed
	}
	entry.Status = store.FetchOK
	svc.logFetch(ctx, entry)
	log.Info("veille: changes detected", "type", report.Kind, "changes", report.Changes, "method", res.Method)

	input := analysisInput(site, report)
	changeHash := md5Hex(input)
	seen, err := svc.store.HasChangeHash(ctx, changeHash)
	if err != nil {
		log.Error("veille: check change hash", "error", err)
		return nil, outcomeFailed
	}
	if seen {
		log.Info("veille: change set already analysed", "change_hash", changeHash)
		return nil, outcomeSkipped
	}

	if err := throttle.Wait(ctx); err != nil {
		log.Warn("veille: throttle", "error", err)
		return nil, outcomeFailed
	}
	result := svc.analyzer.Summarize(ctx, input, comp.Name)

	title := snap.Content.Title
	if title == "" {
		title = defaultWebsiteTitle
	}
	sum := &Summary{
		CompetitorID:   comp.ID,
		CompetitorName: comp.Name,
		Title:          "Website Update: " + title,
		Summary:        result.Text,
		Provider:       result.Provider,
		Source:         site,
		SourceType:     store.SourceWebsite,
		ChangeType:     string(report.Kind),
		Changes:        report.Changes,
		ChangeHash:     changeHash,
		PubDate:        snap.Timestamp,
		Date:           svc.now().UTC(),
	}
	return svc.persist(ctx, sum)
}

// analysisInput is the text handed to the analyzer for a website change.
// Its MD5 identifies the change set.
func analysisInput(site string, r *ChangeReport) string {
	c := r.Snapshot.Content
	return fmt.Sprintf("Website: %s\nChanges detected: %s\nCurrent content: %s\nHeadlines: %s",
		site, strings.Join(r.Changes, "; "), c.Content, strings.Join(c.Headlines, "; "))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// newThrottle returns a limiter releasing one item every d. A non-positive
// d never blocks.
func newThrottle(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// persist stores a summary and deposits its digest file. A summary whose
// source or change hash is already stored counts as skipped.
func (svc *Service) persist(ctx context.Context, sum *Summary) (*Summary, outcome) {
	log := svc.logger.With("competitor", sum.CompetitorID, "source", sum.Source)
	inserted, err := svc.store.InsertSummary(ctx, sum)
	if err != nil {
		log.Error("veille: insert summary", "error", err)
		return nil, outcomeFailed
	}
	if !inserted {
		log.Info("veille: summary already stored")
		return nil, outcomeSkipped
	}
	log.Info("veille: summary stored", "id", sum.ID, "title", sum.Title, "provider", sum.Provider)
	svc.writeDigest(ctx, sum)
	return sum, outcomeSummarized
}

func (svc *Service) logFetch(ctx context.Context, entry *store.FetchLogEntry) {
	if err := svc.store.InsertFetchLog(ctx, entry); err != nil {
		svc.logger.Warn("veille: insert fetch log", "url", entry.URL, "error", err)
	}
}
