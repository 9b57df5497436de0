// Package sitefetcher adapts the site-specific fetchers (RSS/Atom feed
// parsing, Webflow/Next.js/Remix HTML scraping, Readability content
// extraction) to the orchestrator's SiteFetcher boundary.
package sitefetcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/infra/fetcher"
	"crawlorch/internal/infra/scraper"
	"crawlorch/internal/observability/metrics"
	"crawlorch/internal/orchestrator/runner"
	"crawlorch/internal/repository"
	"crawlorch/internal/usecase/fetch"
)

// SiteFetcher implements runner.SiteFetcher by routing a crawler's
// configured ScraperType to the matching fetch.FeedFetcher, and every
// content fetch through a Readability-based extractor.
type SiteFetcher struct {
	Crawlers repository.CrawlerRepository
	Feeds    map[string]fetch.FeedFetcher // keyed by ScraperType: RSS, Webflow, NextJS, Remix
	Content  fetch.ContentFetcher
	Limiter  *RateLimiter
}

// New builds a SiteFetcher from an HTTP-backed RSS fetcher, the
// Webflow/NextJS/Remix scraper factory, and a content fetcher. limiter
// may be nil to disable outbound rate limiting.
func New(crawlers repository.CrawlerRepository, rss fetch.FeedFetcher, webScrapers map[string]fetch.FeedFetcher, content fetch.ContentFetcher, limiter *RateLimiter) *SiteFetcher {
	feeds := map[string]fetch.FeedFetcher{"RSS": rss}
	for scraperType, f := range webScrapers {
		feeds[scraperType] = f
	}
	return &SiteFetcher{Crawlers: crawlers, Feeds: feeds, Content: content, Limiter: limiter}
}

// FetchLinks resolves the crawler's own ListURLTemplate and
// ScraperConfig (the listURLTemplate argument is honored only when
// non-empty, letting callers override it; otherwise the crawler's
// stored template is used), then paginates by substituting "{page}"
// in the template up to maxPages times, stopping early on an empty page.
func (s *SiteFetcher) FetchLinks(ctx context.Context, crawlerID int64, listURLTemplate string, maxPages int) ([]runner.LinkItem, error) {
	crawler, err := s.Crawlers.Get(ctx, crawlerID)
	if err != nil {
		return nil, fmt.Errorf("FetchLinks: %w", err)
	}
	if crawler == nil {
		return nil, fmt.Errorf("FetchLinks: %w", entity.ErrNotFound)
	}

	template := listURLTemplate
	if template == "" {
		template = crawler.ListURLTemplate
	}
	if template == "" {
		template = crawler.BaseURL
	}

	feeder, ok := s.Feeds[crawler.ScraperType]
	if !ok {
		return nil, fmt.Errorf("FetchLinks: no fetcher registered for scraper type %q", crawler.ScraperType)
	}
	if crawler.ScraperConfig != nil {
		ctx = context.WithValue(ctx, scraper.ScraperConfigKey, crawler.ScraperConfig)
	}

	if maxPages < 1 {
		maxPages = 1
	}

	start := time.Now()
	var out []runner.LinkItem
	for page := 1; page <= maxPages; page++ {
		pageURL := template
		if strings.Contains(template, "{page}") {
			pageURL = strings.ReplaceAll(template, "{page}", strconv.Itoa(page))
		} else if page > 1 {
			break // not paginated: a single fetch covers everything
		}

		if err := s.Limiter.Allow(ctx); err != nil {
			return out, fmt.Errorf("FetchLinks: rate limit: %w", err)
		}

		items, err := feeder.Fetch(ctx, pageURL)
		if err != nil {
			metrics.RecordLinkCollectionError(crawlerID, "fetch_failed")
			return out, fmt.Errorf("FetchLinks: page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			out = append(out, runner.LinkItem{Link: item.URL, Title: item.Title, PublishedAt: item.PublishedAt})
		}
	}
	metrics.RecordLinkCollection(crawlerID, time.Since(start), len(out))
	return out, nil
}

// FetchContent extracts full article text via the Readability-based
// ContentFetcher. Title/Summary/Keywords are left blank: the merge
// rule in entity.Article.MergeIncoming preserves whatever the link
// phase already recorded for them.
func (s *SiteFetcher) FetchContent(ctx context.Context, link string) (runner.ContentResult, error) {
	if err := s.Limiter.Allow(ctx); err != nil {
		return runner.ContentResult{}, fmt.Errorf("FetchContent: rate limit: %w", err)
	}

	start := time.Now()
	content, err := s.Content.FetchContent(ctx, link)
	if err != nil {
		metrics.RecordContentFetchFailed(time.Since(start))
		return runner.ContentResult{}, err
	}
	metrics.RecordContentFetchSuccess(time.Since(start), len(content))
	return runner.ContentResult{Link: link, Content: content}, nil
}
