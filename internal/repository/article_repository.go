package repository

import (
	"context"
	"time"

	"crawlorch/internal/domain/entity"
)

// ArticleFindFilters narrows an advanced/paginated article query.
type ArticleFindFilters struct {
	CrawlerID    *int64
	TaskID       *int64
	ScrapeStatus *entity.ArticleScrapeStatus
	IsScraped    *bool
	From         *time.Time
	To           *time.Time

	// Category, Source and Tags mirror spec §4.B's find_advanced filter
	// set (category?, tags?, source?). Category/Source are exact match;
	// Tags matches rows containing ANY of the given tags.
	Category *string
	Source   *string
	Tags     []string
}

// ArticlePage is one page of an advanced find, with enough metadata for
// the facade to build pagination links.
type ArticlePage struct {
	Items      []*entity.Article
	Total      int64
	Page       int
	PageSize   int
}

// BatchResult reports the outcome of a per-row batch operation: rows that
// succeeded are not repeated here, only the ones that failed, keyed by
// the link that failed and why.
type BatchResult struct {
	Succeeded int
	Failed    map[string]error
}

// ArticleRepository is the Article Store Gateway: idempotent upsert
// keyed on link, batch variants for the Task Runner's bulk save phases,
// and advanced/keyword find for the Task Service Facade's read side.
type ArticleRepository interface {
	// Upsert inserts article or, if its Link already exists, merges
	// incoming non-null fields into the stored row and reconciles
	// ScrapeStatus/IsScraped. Returns the row's ID either way.
	Upsert(ctx context.Context, article *entity.Article) (int64, error)

	// BatchUpsert applies Upsert to every article, continuing past
	// individual failures and aggregating them into BatchResult so one
	// bad row does not abort an entire save phase.
	BatchUpsert(ctx context.Context, articles []*entity.Article) (BatchResult, error)

	// BatchCreate inserts every article, continuing past individual
	// failures and aggregating them into BatchResult. Unlike BatchUpsert
	// it never merges into an existing row; a link conflict is reported
	// as a per-row failure, not silently folded into the existing row.
	BatchCreate(ctx context.Context, articles []*entity.Article) (BatchResult, error)

	// ExistsByLink batches existence checks for a set of candidate
	// links, used before a link-collection phase decides which
	// discovered URLs are already known.
	ExistsByLink(ctx context.Context, links []string) (map[string]bool, error)

	Get(ctx context.Context, id int64) (*entity.Article, error)
	GetByLink(ctx context.Context, link string) (*entity.Article, error)

	// FindAdvanced returns a filtered, paginated page of articles
	// ordered by published_at DESC.
	FindAdvanced(ctx context.Context, filters ArticleFindFilters, page, pageSize int) (ArticlePage, error)

	// FindByKeywords performs multi-keyword AND-logic search over
	// title/summary/content.
	FindByKeywords(ctx context.Context, keywords []string, filters ArticleFindFilters) ([]*entity.Article, error)

	Delete(ctx context.Context, id int64) error
}
