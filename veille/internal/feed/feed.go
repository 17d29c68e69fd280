// Package feed reads the latest articles of an RSS, Atom or JSON feed.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/mmcdole/gofeed"

	"github.com/hazyhaar/rivalwatch/horosafe"
)

// Article is one feed item reduced to what the analysis step needs.
type Article struct {
	GUID    string    `json:"guid"`
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	PubDate time.Time `json:"pubDate"`
	Content string    `json:"content"`
}

// Config configures a Reader.
type Config struct {
	Timeout      time.Duration // Default: 30s.
	MaxBytes     int64         // Default: 10 MiB.
	UserAgent    string
	URLValidator func(string) error // Default: horosafe.ValidateURL.
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "rivalwatch/1.0 (+feed reader)"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Reader fetches and parses feeds.
type Reader struct {
	cfg    Config
	client *http.Client
	md     *converter.Converter
}

// New creates a Reader.
func New(cfg Config) *Reader {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Reader{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// FetchLatest returns the first limit items of the feed at feedURL, in
// feed order.
func (r *Reader) FetchLatest(ctx context.Context, feedURL string, limit int) ([]Article, error) {
	if err := r.cfg.URLValidator(feedURL); err != nil {
		return nil, fmt.Errorf("feed: URL rejected: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: new request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: get %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed: get %s: http %d", feedURL, resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, r.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("feed: read %s: %w", feedURL, err)
	}
	return r.Parse(body, limit)
}

// Parse decodes a feed document and returns its first limit items.
// limit <= 0 returns every item.
func (r *Reader) Parse(data []byte, limit int) ([]Article, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("feed: parse: %w", err)
	}

	items := parsed.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]Article, 0, len(items))
	for _, it := range items {
		a := Article{
			GUID:  it.GUID,
			Title: strings.TrimSpace(it.Title),
			Link:  strings.TrimSpace(it.Link),
		}
		switch {
		case it.PublishedParsed != nil:
			a.PubDate = it.PublishedParsed.UTC()
		case it.UpdatedParsed != nil:
			a.PubDate = it.UpdatedParsed.UTC()
		}
		raw := it.Content
		if strings.TrimSpace(raw) == "" {
			raw = it.Description
		}
		a.Content = r.toText(raw, a.Link)
		out = append(out, a)
	}
	return out, nil
}

// toText renders item HTML as markdown text. If conversion fails the raw
// value is returned trimmed.
func (r *Reader) toText(html, link string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	var (
		out string
		err error
	)
	if link != "" {
		out, err = r.md.ConvertString(html, converter.WithDomain(link))
	} else {
		out, err = r.md.ConvertString(html)
	}
	if err != nil || strings.TrimSpace(out) == "" {
		r.cfg.Logger.Debug("feed: html conversion fell back to raw text", "link", link, "error", err)
		return html
	}
	return strings.TrimSpace(out)
}
