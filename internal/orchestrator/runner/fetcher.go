package runner

import (
	"context"
	"time"
)

// LinkItem is one discovered article link, as returned by a Site
// Fetcher's list-page scan.
type LinkItem struct {
	Link        string
	Title       string
	PublishedAt time.Time
}

// ContentResult is the scraped body for one link.
type ContentResult struct {
	Link     string
	Title    string
	Summary  string
	Content  string
	Keywords []string
	Err      error
}

// SiteFetcher is the external collaborator the Task Runner calls into
// for link discovery and content scraping. Concrete implementations
// (RSS feed, Webflow/NextJS/Remix HTML scraping) live outside the
// orchestration core; the runner only depends on this interface.
type SiteFetcher interface {
	// FetchLinks returns the article links found on a crawler's list
	// pages, honoring maxPages as an upper bound on pagination depth.
	FetchLinks(ctx context.Context, crawlerID int64, listURLTemplate string, maxPages int) ([]LinkItem, error)

	// FetchContent scrapes a single article's full content.
	FetchContent(ctx context.Context, link string) (ContentResult, error)
}
