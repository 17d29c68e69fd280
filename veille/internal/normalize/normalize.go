// Package normalize reduces a fetched page to the canonical Content record
// that is hashed and compared between observations.
//
// Two extractors exist, one per fetch strategy. FromDOM works on the
// serialized DOM of a rendered page and understands page structure.
// FromMarkup works on raw HTML text with pattern matching only. Both
// produce the same shape so snapshots from either strategy are comparable.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// MaxContentRunes bounds the Content excerpt.
const MaxContentRunes = 2000

const (
	noiseSelector    = "script, style, nav, footer, aside, .cookie-banner, .popup"
	mainSelector     = "main, .main, #main, .content, #content, article, .article"
	headlineSelector = "h1, h2, h3"
	maxParagraphs    = 10
	minParagraphLen  = 20
	maxHeadlines     = 10
	noTitle          = "No title found"
)

// Content is the canonical page record. Field order is part of the hash.
type Content struct {
	Title      string   `json:"title" yaml:"title"`
	URL        string   `json:"url" yaml:"url"`
	Headlines  []string `json:"headlines" yaml:"headlines"`
	Content    string   `json:"content" yaml:"content"`
	Paragraphs []string `json:"paragraphs" yaml:"paragraphs"`
}

// canonical returns c with nil lists replaced by empty ones.
func (c Content) canonical() Content {
	if c.Headlines == nil {
		c.Headlines = []string{}
	}
	if c.Paragraphs == nil {
		c.Paragraphs = []string{}
	}
	return c
}

// MarshalJSON always emits lists as arrays, never null.
func (c Content) MarshalJSON() ([]byte, error) {
	type plain Content
	return json.Marshal(plain(c.canonical()))
}

// Hash returns the hex MD5 of the canonical JSON encoding of c. It detects
// change; it is not an integrity check.
func Hash(c Content) string {
	data, err := json.Marshal(c)
	if err != nil {
		// Content holds only strings; Marshal cannot fail.
		panic("normalize: marshal content: " + err.Error())
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// FromDOM extracts Content from a rendered page's HTML. Navigation, footers,
// scripts, styles and overlay banners are removed before extraction.
func FromDOM(rawHTML, pageURL string) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Content{}, err
	}

	c := Content{
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		URL:        pageURL,
		Headlines:  []string{},
		Paragraphs: []string{},
	}

	doc.Find(noiseSelector).Remove()

	doc.Find(headlineSelector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			c.Headlines = append(c.Headlines, text)
		}
	})

	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		if i >= maxParagraphs {
			return
		}
		if text := strings.TrimSpace(s.Text()); len(text) > minParagraphLen {
			c.Paragraphs = append(c.Paragraphs, text)
		}
	})

	if main := doc.Find(mainSelector).First(); main.Length() > 0 {
		c.Content = Truncate(strings.TrimSpace(main.Text()), MaxContentRunes)
	}
	return c, nil
}

var (
	reTitle    = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	reHeadline = regexp.MustCompile(`(?i)<h[1-6][^>]*>([^<]+)</h[1-6]>`)
	reScript   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
)

var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	// Only script and style bodies are dropped; they are removed above.
	p.AllowElementsContent("title", "noscript", "iframe", "noembed", "noframes", "object")
	return p
}()

// FromMarkup extracts Content from raw HTML without a DOM. Paragraphs are
// never populated.
func FromMarkup(rawHTML, pageURL string) Content {
	c := Content{
		Title:      noTitle,
		URL:        pageURL,
		Headlines:  []string{},
		Paragraphs: []string{},
	}

	if m := reTitle.FindStringSubmatch(rawHTML); m != nil {
		if t := strings.TrimSpace(html.UnescapeString(m[1])); t != "" {
			c.Title = t
		}
	}

	for _, m := range reHeadline.FindAllStringSubmatch(rawHTML, -1) {
		if len(c.Headlines) == maxHeadlines {
			break
		}
		if text := strings.TrimSpace(html.UnescapeString(m[1])); text != "" {
			c.Headlines = append(c.Headlines, text)
		}
	}

	body := reScript.ReplaceAllString(rawHTML, " ")
	body = reStyle.ReplaceAllString(body, " ")
	body = html.UnescapeString(stripPolicy.Sanitize(body))
	c.Content = Truncate(strings.Join(strings.Fields(body), " "), MaxContentRunes)
	return c
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
