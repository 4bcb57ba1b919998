// Package ingest pulls articles from configured RSS/Atom feeds and cleans
// their HTML bodies down to plain text for the Extractor. No example repo
// in the corpus imports a feed-parsing library, so feed XML is parsed with
// the standard library's encoding/xml (see DESIGN.md); HTML body cleaning
// reuses the teacher's goquery idiom from pkg/core/edgar/html_sanitizer.go.
package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/y437li/infounit/pkg/models"
)

// Fetcher retrieves articles from a source. The pipeline only depends on
// this interface, not on any particular feed format.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Article, error)
}

// FeedFetcher pulls one RSS or Atom feed over HTTP and normalizes its
// entries into models.Article.
type FeedFetcher struct {
	Name     string
	URL      string
	Category string
	Client   *http.Client
}

// NewFeedFetcher builds a FeedFetcher with a sane default HTTP client.
func NewFeedFetcher(name, url, category string) *FeedFetcher {
	return &FeedFetcher{
		Name:     name,
		URL:      url,
		Category: category,
		Client:   &http.Client{Timeout: 20 * time.Second},
	}
}

// rssFeed and atomFeed are minimal structural subsets of the two formats;
// Fetch tries RSS first, then Atom.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author"`
	PubDate     string `xml:"pubDate"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Author  struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Updated string `xml:"updated"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// Fetch downloads and parses the feed, returning one Article per entry.
func (f *FeedFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request for %s: %w", f.Name, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch feed %s: status %d", f.Name, resp.StatusCode)
	}

	var body strings.Builder
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read feed %s: %w", f.Name, err)
	}
	raw := body.String()
	now := time.Now()

	var rss rssFeed
	if err := xml.Unmarshal([]byte(raw), &rss); err == nil && len(rss.Channel.Items) > 0 {
		articles := make([]models.Article, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			articles = append(articles, models.Article{
				URL:         item.Link,
				Title:       strings.TrimSpace(item.Title),
				Content:     CleanHTML(item.Description),
				Summary:     firstParagraph(CleanHTML(item.Description)),
				Source:      f.Name,
				Category:    f.Category,
				Author:      item.Author,
				PublishedAt: parseFeedTime(item.PubDate, now),
				FetchedAt:   now,
			})
		}
		return articles, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal([]byte(raw), &atom); err == nil && len(atom.Entries) > 0 {
		articles := make([]models.Article, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			content := entry.Content
			if content == "" {
				content = entry.Summary
			}
			articles = append(articles, models.Article{
				URL:         entry.Link.Href,
				Title:       strings.TrimSpace(entry.Title),
				Content:     CleanHTML(content),
				Summary:     firstParagraph(CleanHTML(content)),
				Source:      f.Name,
				Category:    f.Category,
				Author:      entry.Author.Name,
				PublishedAt: parseFeedTime(entry.Updated, now),
				FetchedAt:   now,
			})
		}
		return articles, nil
	}

	return nil, fmt.Errorf("fetch feed %s: not recognizable as RSS or Atom", f.Name)
}

// CleanHTML strips tags, scripts, and styling noise from an HTML fragment,
// returning readable plain text (grounded on the teacher's goquery-based
// HTMLSanitizer.RemoveNoise idiom).
func CleanHTML(htmlFragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlFragment))
	if err != nil {
		return strings.TrimSpace(htmlFragment)
	}
	doc.Find("script, style, nav, footer, iframe, noscript").Remove()
	text := doc.Text()
	return strings.TrimSpace(collapseWhitespace(text))
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func firstParagraph(text string) string {
	if len(text) > 300 {
		return text[:300]
	}
	return text
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
}

func parseFeedTime(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
