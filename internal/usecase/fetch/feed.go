package fetch

import (
	"context"
	"time"
)

// FeedItem represents a single entry discovered by a feed/scraper
// fetch, before it is translated into an orchestrator LinkItem.
type FeedItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// FeedFetcher fetches the list of entries published at a source URL,
// implemented per scraper type (RSS/Atom, Webflow, Next.js, Remix).
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}
