package feeds

import (
	"context"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rgsec/threatdeck/internal/intel"
)

var cvePattern = regexp.MustCompile(`CVE-\d{4}-\d+`)

// RSSSource adapts any RSS/Atom feed into raw items.
type RSSSource struct {
	client *Client
	parser *gofeed.Parser

	label       string
	url         string
	limit       int
	extractCVEs bool // regex CVE IDs out of entry titles (MSRC style)
}

// NewRSSSource creates an adapter for one feed URL.
func NewRSSSource(client *Client, label, url string, limit int, extractCVEs bool) *RSSSource {
	if limit <= 0 {
		limit = 5
	}
	return &RSSSource{
		client:      client,
		parser:      gofeed.NewParser(),
		label:       label,
		url:         url,
		limit:       limit,
		extractCVEs: extractCVEs,
	}
}

func (s *RSSSource) Name() string { return s.label }

func (s *RSSSource) Fetch(ctx context.Context) ([]intel.RawItem, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}

	items := make([]intel.RawItem, 0, len(entries))
	for _, entry := range entries {
		id := entry.GUID
		if id == "" {
			id = entry.Link
		}

		var cves []string
		if s.extractCVEs {
			cves = cvePattern.FindAllString(entry.Title, -1)
		}

		items = append(items, intel.RawItem{
			ID:          id,
			URL:         entry.Link,
			Source:      s.label,
			PublishedAt: publishedString(entry),
			Title:       entry.Title,
			Summary:     entry.Description,
			CVEList:     cves,
		})
	}
	return items, nil
}

// publishedString prefers the parsed timestamp; the raw string goes through
// otherwise and the normalizer deals with it.
func publishedString(entry *gofeed.Item) string {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if entry.Published != "" {
		return entry.Published
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return entry.Updated
}
