package ingest

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/signalry/signalry/internal/model"
)

const maxPerFeed = 50

// FeedSource is one configured RSS/Atom feed.
type FeedSource struct {
	URL  string
	Name string
}

// FeedConnector pulls signals from RSS/Atom feeds. Entries that carry only
// a link get their text fetched and extracted with readability.
type FeedConnector struct {
	feeds  []FeedSource
	parser *gofeed.Parser
	client *http.Client
}

// NewFeedConnector creates a feed connector for the given sources.
func NewFeedConnector(feeds []FeedSource) *FeedConnector {
	return &FeedConnector{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Name implements PullConnector.
func (f *FeedConnector) Name() string { return "feed" }

// Fetch parses every configured feed. A feed that fails to parse is
// logged and skipped. The since bound is inclusive of the entry's
// published time.
func (f *FeedConnector) Fetch(ctx context.Context, keywords []string, since time.Time, limit int) ([]model.Signal, error) {
	var all []model.Signal
	for _, fc := range f.feeds {
		if atLimit(len(all), limit) {
			break
		}

		name := fc.Name
		if name == "" {
			name = sourceNameFromURL(fc.URL)
		}

		signals, err := f.parseFeed(ctx, fc.URL, name, keywords, since)
		if err != nil {
			log.Printf("failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, signals...)
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *FeedConnector) parseFeed(ctx context.Context, feedURL, actor string, keywords []string, since time.Time) ([]model.Signal, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var signals []model.Signal
	for _, item := range feed.Items {
		if len(signals) >= maxPerFeed {
			break
		}

		sourceID := item.Link
		if sourceID == "" {
			sourceID = item.GUID
		}
		if sourceID == "" {
			continue
		}

		ts := time.Now().UTC()
		if item.PublishedParsed != nil {
			ts = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			ts = *item.UpdatedParsed
		}
		if !withinWindow(ts, since) {
			continue
		}

		text := entryText(item)
		if text == "" && item.Link != "" {
			text = f.extractLinked(item.Link)
		}
		if text == "" || !matchesKeywords(text, keywords) {
			continue
		}

		author := actor
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		}

		signals = append(signals, model.Signal{
			ID:        model.NewSignalID(),
			Source:    f.Name(),
			Actor:     author,
			Text:      text,
			Timestamp: ts,
			SourceID:  sourceID,
		})
	}
	return signals, nil
}

func entryText(item *gofeed.Item) string {
	title := strings.TrimSpace(item.Title)
	body := ""
	if item.Content != "" {
		body = stripHTML(item.Content)
	} else if item.Description != "" {
		body = stripHTML(item.Description)
	}

	switch {
	case title != "" && body != "":
		return title + " " + body
	case title != "":
		return title
	}
	return body
}

// extractLinked fetches the linked page and pulls readable text out of it.
// Any failure just yields an empty string; feeds are best effort.
func (f *FeedConnector) extractLinked(link string) string {
	req, err := http.NewRequest("GET", link, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "signalry/1.0 (signal collector)")

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	parsedURL, _ := url.Parse(link)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text
	}
	return ""
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

func sourceNameFromURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	if host == "" {
		return feedURL
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}
