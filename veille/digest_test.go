package veille

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/rivalwatch/veille/internal/feed"
	"github.com/hazyhaar/rivalwatch/veille/internal/store"
)

func TestDigestFeeds_NewThenSkipped(t *testing.T) {
	// WHAT: Articles are summarised once; a second run skips them by link.
	// WHY: Feeds repeat their latest items on every read.
	pub := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	feeds := &fakeFeeds{items: map[string][]feed.Article{
		"https://acme.example/feed": {
			{Title: "Pricing update", Link: "https://acme.example/p", PubDate: pub, Content: "New prices."},
			{Title: "Hiring", Link: "https://acme.example/h", Content: "We are hiring."},
		},
	}}
	svc, _ := setupTestService(t, testConfig(), WithFeedReader(feeds))
	ctx := context.Background()

	rep := svc.DigestFeeds(ctx)
	if rep.Checked != 2 || len(rep.Summaries) != 2 || rep.Failed != 0 {
		t.Fatalf("run 1: %+v", rep)
	}
	sum := rep.Summaries[0]
	if sum.Title != "Pricing update" || sum.Source != "https://acme.example/p" || sum.SourceType != SourceRSS {
		t.Errorf("summary: %+v", sum)
	}
	if !sum.PubDate.Equal(pub) {
		t.Errorf("pub date: got %v", sum.PubDate)
	}

	rep = svc.DigestFeeds(ctx)
	if rep.Skipped != 2 || len(rep.Summaries) != 0 {
		t.Fatalf("run 2: %+v", rep)
	}

	list, err := svc.ListSummaries(ctx, SummaryFilter{CompetitorID: "acme", SourceType: SourceRSS})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("stored: got %d", len(list))
	}
}

func TestDigestFeeds_MaxArticles(t *testing.T) {
	// WHAT: At most maxArticlesPerSource items are read per feed.
	// WHY: Bounds analysis cost per run.
	var items []feed.Article
	for i := 0; i < 8; i++ {
		items = append(items, feed.Article{Title: fmt.Sprintf("a%d", i), Link: fmt.Sprintf("https://acme.example/%d", i)})
	}
	feeds := &fakeFeeds{items: map[string][]feed.Article{"https://acme.example/feed": items}}
	svc, _ := setupTestService(t, testConfig(), WithFeedReader(feeds))

	rep := svc.DigestFeeds(context.Background())
	if rep.Checked != 5 || len(rep.Summaries) != 5 {
		t.Errorf("report: %+v", rep)
	}
}

func TestDigestFeeds_FeedError(t *testing.T) {
	// WHAT: A broken feed is counted and logged; other feeds still run.
	// WHY: Fail-soft at item granularity.
	cfg := testConfig()
	cfg.Competitors[0].Sources.RSS = []string{"https://broken.example/feed", "https://acme.example/feed"}
	feeds := &fakeFeeds{
		items: map[string][]feed.Article{
			"https://acme.example/feed": {{Title: "ok", Link: "https://acme.example/ok"}},
		},
		errs: map[string]error{"https://broken.example/feed": errors.New("feed: http 500")},
	}
	svc, _ := setupTestService(t, cfg, WithFeedReader(feeds))
	ctx := context.Background()

	rep := svc.DigestFeeds(ctx)
	if rep.Failed != 1 || len(rep.Summaries) != 1 {
		t.Fatalf("report: %+v", rep)
	}
	logs, err := svc.FetchHistory(ctx, "acme", "https://broken.example/feed", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != store.FetchError || logs[0].Method != methodFeed {
		t.Fatalf("fetch log: %+v", logs)
	}
	if logs[0].ErrorClass != "temporary" {
		t.Errorf("error class: got %q", logs[0].ErrorClass)
	}
}

func TestDigestFeeds_ItemWithoutLink(t *testing.T) {
	// WHAT: The GUID stands in for a missing link; items with neither fail.
	// WHY: The source column is the dedup key.
	feeds := &fakeFeeds{items: map[string][]feed.Article{
		"https://acme.example/feed": {
			{Title: "guid only", GUID: "tag:acme,2026:1"},
			{Title: "nothing"},
		},
	}}
	svc, _ := setupTestService(t, testConfig(), WithFeedReader(feeds))

	rep := svc.DigestFeeds(context.Background())
	if len(rep.Summaries) != 1 || rep.Failed != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Summaries[0].Source != "tag:acme,2026:1" {
		t.Errorf("source: %q", rep.Summaries[0].Source)
	}
}

func TestDigestFeeds_DefaultReader(t *testing.T) {
	// WHAT: The default feed reader parses a real RSS document over HTTP.
	// WHY: Exercises the wiring between the service and gofeed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Acme</title>
<item><title>Acme ships v2</title><link>https://acme.example/v2</link>
<pubDate>Mon, 02 Feb 2026 10:00:00 GMT</pubDate>
<description>&lt;p&gt;Version &lt;b&gt;two&lt;/b&gt; is out.&lt;/p&gt;</description></item>
</channel></rss>`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Competitors[0].Sources.RSS = []string{srv.URL + "/feed"}
	an := &recordingAnalyzer{}
	svc, err := New(setupDB(t), cfg, an, discardLogger(), WithURLValidator(noopValidator), WithClock(stepClock()))
	if err != nil {
		t.Fatal(err)
	}

	rep := svc.DigestFeeds(context.Background())
	if len(rep.Summaries) != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if rep.Summaries[0].Title != "Acme ships v2" {
		t.Errorf("title: %q", rep.Summaries[0].Title)
	}
	if len(an.inputs) != 1 || strings.Contains(an.inputs[0], "<b>") || !strings.Contains(an.inputs[0], "two") {
		t.Errorf("analysis input: %q", an.inputs)
	}
}
