package veille

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/rivalwatch/veille/internal/buffer"
	"github.com/hazyhaar/rivalwatch/veille/internal/feed"
	"github.com/hazyhaar/rivalwatch/veille/internal/fetch"
	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

// methodFeed tags fetch log entries written for feed reads.
const methodFeed = "feed"

// DigestFeeds reads the latest maxArticlesPerSource items of every
// configured feed and analyses the ones whose link has no summary yet.
// Item failures are logged and counted; they never stop the run.
func (svc *Service) DigestFeeds(ctx context.Context) RunReport {
	rep := RunReport{Kind: RunFeeds, StartedAt: svc.now().UTC()}
	throttle := newThrottle(svc.config.Monitoring.RSSDelay)
	limit := svc.config.Monitoring.MaxArticlesPerSource

	svc.logger.Info("veille: feed digest started", "competitors", len(svc.config.Competitors))
	for _, comp := range svc.config.Competitors {
		if len(comp.Sources.RSS) == 0 {
			svc.logger.Debug("veille: no feeds configured", "competitor", comp.ID)
			continue
		}
		for _, feedURL := range comp.Sources.RSS {
			if ctx.Err() != nil {
				break
			}
			articles, ok := svc.readFeed(ctx, comp, feedURL, limit)
			if !ok {
				rep.Failed++
				continue
			}
			for _, a := range articles {
				if ctx.Err() != nil {
					break
				}
				rep.Checked++
				sum, o := svc.digestArticle(ctx, comp, a, throttle)
				rep.add(o, sum)
			}
		}
	}
	rep.FinishedAt = svc.now().UTC()
	svc.logger.Info("veille: feed digest finished",
		"checked", rep.Checked, "summaries", len(rep.Summaries),
		"skipped", rep.Skipped, "failed", rep.Failed)
	return rep
}

func (svc *Service) readFeed(ctx context.Context, comp Competitor, feedURL string, limit int) ([]feed.Article, bool) {
	start := time.Now()
	articles, err := svc.feeds.FetchLatest(ctx, feedURL, limit)
	entry := &store.FetchLogEntry{
		CompetitorID: comp.ID,
		URL:          feedURL,
		Method:       methodFeed,
		Status:       store.FetchOK,
		Attempts:     1,
		DurationMs:   time.Since(start).Milliseconds(),
		FetchedAt:    svc.now().UTC(),
	}
	if err != nil {
		entry.Status = store.FetchError
		entry.ErrorMessage = err.Error()
		entry.ErrorClass = string(fetch.Classify(err))
		svc.logFetch(ctx, entry)
		svc.logger.Warn("veille: feed failed", "competitor", comp.ID, "url", feedURL, "error", err)
		return nil, false
	}
	svc.logFetch(ctx, entry)
	svc.logger.Info("veille: feed read", "competitor", comp.ID, "url", feedURL, "items", len(articles))
	return articles, true
}

func (svc *Service) digestArticle(ctx context.Context, comp Competitor, a feed.Article, throttle *rate.Limiter) (*Summary, outcome) {
	link := a.Link
	if link == "" {
		link = a.GUID
	}
	log := svc.logger.With("competitor", comp.ID, "link", link)
	if link == "" {
		log.Warn("veille: feed item without link or guid", "title", a.Title)
		return nil, outcomeFailed
	}

	seen, err := svc.store.HasRSSSource(ctx, link)
	if err != nil {
		log.Error("veille: check source", "error", err)
		return nil, outcomeFailed
	}
	if seen {
		log.Debug("veille: article already summarised", "title", a.Title)
		return nil, outcomeSkipped
	}

	if err := throttle.Wait(ctx); err != nil {
		log.Warn("veille: throttle", "error", err)
		return nil, outcomeFailed
	}
	log.Info("veille: analysing article", "title", a.Title)
	result := svc.analyzer.Summarize(ctx, a.Content, comp.Name)

	return svc.persist(ctx, &Summary{
		CompetitorID:   comp.ID,
		CompetitorName: comp.Name,
		Title:          a.Title,
		Summary:        result.Text,
		Provider:       result.Provider,
		Source:         link,
		SourceType:     store.SourceRSS,
		PubDate:        a.PubDate,
		Date:           svc.now().UTC(),
	})
}

// writeDigest deposits a summary as a markdown file when a digest directory
// is configured. Failures are logged only; the summary is already stored.
func (svc *Service) writeDigest(ctx context.Context, sum *Summary) {
	if svc.digest == nil {
		return
	}
	path, err := svc.digest.Write(ctx, buffer.Metadata{
		ID:             sum.ID,
		CompetitorID:   sum.CompetitorID,
		CompetitorName: sum.CompetitorName,
		Title:          sum.Title,
		Source:         sum.Source,
		SourceType:     sum.SourceType,
		Provider:       sum.Provider,
		ChangeType:     sum.ChangeType,
		Changes:        sum.Changes,
		PubDate:        sum.PubDate,
		Date:           sum.Date,
	}, sum.Summary)
	if err != nil {
		svc.logger.Warn("veille: write digest", "id", sum.ID, "error", err)
		return
	}
	svc.logger.Debug("veille: digest written", "path", path)
}
