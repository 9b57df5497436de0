// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article, Crawler, Task and
// TaskHistory, along with their validation rules and domain-specific errors.
package entity

import "time"

// ArticleScrapeStatus tracks how far content acquisition progressed for a
// single article row.
type ArticleScrapeStatus string

const (
	ArticleScrapeStatusNotScraped   ArticleScrapeStatus = "not_scraped"
	ArticleScrapeStatusLinkSaved    ArticleScrapeStatus = "link_saved"
	ArticleScrapeStatusContentSaved ArticleScrapeStatus = "content_scraped"
	ArticleScrapeStatusPartialSaved ArticleScrapeStatus = "partial_saved"
	ArticleScrapeStatusFailed       ArticleScrapeStatus = "failed"
)

// Valid reports whether s is one of the recognized scrape statuses.
func (s ArticleScrapeStatus) Valid() bool {
	switch s {
	case ArticleScrapeStatusNotScraped, ArticleScrapeStatusLinkSaved,
		ArticleScrapeStatusContentSaved, ArticleScrapeStatusPartialSaved,
		ArticleScrapeStatusFailed:
		return true
	}
	return false
}

// Article represents a news article row tracked through link discovery,
// content scraping and persistence.
//
// Invariant: IsScraped is true iff ScrapeStatus is ContentSaved or
// PartialSaved. FAILED always forces IsScraped=false while preserving
// ScrapeError and LastScrapeAttempt for diagnostics.
type Article struct {
	ID          int64
	CrawlerID   int64
	TaskID      int64
	Link        string
	Title       string
	Summary     string
	Content     string
	Keywords    []string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Source identifies the originating publication (e.g. "TechCrunch"),
	// SourceURL its homepage/feed root. Category, Author, ArticleType and
	// Tags are free-form classification fields surfaced by FindAdvanced's
	// filter set.
	Source      string
	SourceURL   string
	Category    string
	Author      string
	ArticleType string
	Tags        []string

	ScrapeStatus      ArticleScrapeStatus
	IsScraped         bool
	IsAIRelated       bool
	IsPartialSave     bool
	ScrapeError       string
	LastScrapeAttempt time.Time
}

// ReconcileScrapeStatus enforces the IsScraped/ScrapeStatus invariant after
// a status transition. FAILED rows keep their diagnostic fields; every
// other status recomputes IsScraped from the status alone.
func (a *Article) ReconcileScrapeStatus() {
	switch a.ScrapeStatus {
	case ArticleScrapeStatusContentSaved, ArticleScrapeStatusPartialSaved:
		a.IsScraped = true
	case ArticleScrapeStatusFailed:
		a.IsScraped = false
	default:
		a.IsScraped = false
	}
}

// MergeIncoming applies the "incoming non-null wins" merge rule used when
// reconciling a freshly scraped row into the in-memory article table: any
// non-zero field on incoming overwrites the corresponding field on a.
// IsScraped is not merged directly; it is recomputed from ScrapeStatus by
// ReconcileScrapeStatus after the merge.
func (a *Article) MergeIncoming(incoming *Article) {
	if incoming.ScrapeStatus != "" {
		a.ScrapeStatus = incoming.ScrapeStatus
	}
	if incoming.Title != "" {
		a.Title = incoming.Title
	}
	if incoming.Summary != "" {
		a.Summary = incoming.Summary
	}
	if incoming.Content != "" {
		a.Content = incoming.Content
	}
	if len(incoming.Keywords) > 0 {
		a.Keywords = incoming.Keywords
	}
	if !incoming.PublishedAt.IsZero() {
		a.PublishedAt = incoming.PublishedAt
	}
	if incoming.Source != "" {
		a.Source = incoming.Source
	}
	if incoming.SourceURL != "" {
		a.SourceURL = incoming.SourceURL
	}
	if incoming.Category != "" {
		a.Category = incoming.Category
	}
	if incoming.Author != "" {
		a.Author = incoming.Author
	}
	if incoming.ArticleType != "" {
		a.ArticleType = incoming.ArticleType
	}
	if len(incoming.Tags) > 0 {
		a.Tags = incoming.Tags
	}
	if incoming.ScrapeError != "" {
		a.ScrapeError = incoming.ScrapeError
	}
	if !incoming.LastScrapeAttempt.IsZero() {
		a.LastScrapeAttempt = incoming.LastScrapeAttempt
	}
}
