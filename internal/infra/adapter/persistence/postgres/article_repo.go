package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/observability/metrics"
	"crawlorch/internal/pkg/search"
	"crawlorch/internal/repository"

	"github.com/lib/pq"
)

// ArticleRepo is the postgres-backed Article Store Gateway.
type ArticleRepo struct {
	db *sql.DB
	qb *ArticleQueryBuilder
}

func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db, qb: NewArticleQueryBuilder()}
}

// Upsert inserts article or, on a link conflict, merges incoming
// non-null fields into the stored row. COALESCE implements the
// "incoming non-null wins" rule directly in SQL so the merge is atomic
// with the write.
func (repo *ArticleRepo) Upsert(ctx context.Context, article *entity.Article) (int64, error) {
	defer recordDBQuery("upsert_article", time.Now())
	const query = `
INSERT INTO articles
       (crawler_id, task_id, link, title, summary, content, keywords,
        published_at, created_at, updated_at, scrape_status, is_scraped,
        is_ai_related, is_partial_save, scrape_error, last_scrape_attempt,
        source, source_url, category, author, article_type, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, $13, $14, $15,
        $16, $17, $18, $19, $20, $21)
ON CONFLICT (link) DO UPDATE SET
       title               = COALESCE(NULLIF(EXCLUDED.title, ''), articles.title),
       summary             = COALESCE(NULLIF(EXCLUDED.summary, ''), articles.summary),
       content             = COALESCE(NULLIF(EXCLUDED.content, ''), articles.content),
       keywords            = CASE WHEN array_length(EXCLUDED.keywords, 1) > 0
                                   THEN EXCLUDED.keywords ELSE articles.keywords END,
       published_at        = CASE WHEN EXCLUDED.published_at > '0001-01-01'
                                   THEN EXCLUDED.published_at ELSE articles.published_at END,
       updated_at          = $9,
       scrape_status       = EXCLUDED.scrape_status,
       is_scraped          = EXCLUDED.is_scraped,
       is_ai_related       = EXCLUDED.is_ai_related,
       is_partial_save     = EXCLUDED.is_partial_save,
       scrape_error        = COALESCE(NULLIF(EXCLUDED.scrape_error, ''), articles.scrape_error),
       last_scrape_attempt = CASE WHEN EXCLUDED.last_scrape_attempt > '0001-01-01'
                                   THEN EXCLUDED.last_scrape_attempt ELSE articles.last_scrape_attempt END,
       source              = COALESCE(NULLIF(EXCLUDED.source, ''), articles.source),
       source_url          = COALESCE(NULLIF(EXCLUDED.source_url, ''), articles.source_url),
       category            = COALESCE(NULLIF(EXCLUDED.category, ''), articles.category),
       author              = COALESCE(NULLIF(EXCLUDED.author, ''), articles.author),
       article_type        = COALESCE(NULLIF(EXCLUDED.article_type, ''), articles.article_type),
       tags                = CASE WHEN array_length(EXCLUDED.tags, 1) > 0
                                   THEN EXCLUDED.tags ELSE articles.tags END
RETURNING id`

	now := article.UpdatedAt
	var id int64
	err := repo.db.QueryRowContext(ctx, query,
		article.CrawlerID, article.TaskID, article.Link, article.Title,
		article.Summary, article.Content, pq.Array(article.Keywords),
		article.PublishedAt, now, string(article.ScrapeStatus), article.IsScraped,
		article.IsAIRelated, article.IsPartialSave, article.ScrapeError,
		article.LastScrapeAttempt,
		article.Source, article.SourceURL, article.Category, article.Author,
		article.ArticleType, pq.Array(article.Tags),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Upsert: %w", err)
	}
	return id, nil
}

// BatchUpsert applies Upsert row by row inside a single transaction,
// aggregating per-row failures instead of aborting the whole batch —
// one malformed link should not discard an otherwise-good save phase.
func (repo *ArticleRepo) BatchUpsert(ctx context.Context, articles []*entity.Article) (repository.BatchResult, error) {
	defer recordDBQuery("batch_upsert_articles", time.Now())
	result := repository.BatchResult{Failed: make(map[string]error)}
	if len(articles) == 0 {
		return result, nil
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("BatchUpsert: BeginTx: %w", err)
	}

	for _, a := range articles {
		if _, err := repo.upsertTx(ctx, tx, a); err != nil {
			result.Failed[a.Link] = err
			continue
		}
		result.Succeeded++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("BatchUpsert: Commit: %w", err)
	}
	return result, nil
}

// BatchCreate inserts every article in a single transaction, never
// merging into an existing row — a link conflict is reported as a
// per-row failure. This is the insert-only counterpart to BatchUpsert,
// used by save phases where get_links_by_task_id is false and
// scrape_mode is not CONTENT_ONLY.
func (repo *ArticleRepo) BatchCreate(ctx context.Context, articles []*entity.Article) (repository.BatchResult, error) {
	defer recordDBQuery("batch_create_articles", time.Now())
	result := repository.BatchResult{Failed: make(map[string]error)}
	if len(articles) == 0 {
		return result, nil
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("BatchCreate: BeginTx: %w", err)
	}

	for _, a := range articles {
		if _, err := repo.createTx(ctx, tx, a); err != nil {
			result.Failed[a.Link] = err
			continue
		}
		result.Succeeded++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("BatchCreate: Commit: %w", err)
	}
	return result, nil
}

func (repo *ArticleRepo) createTx(ctx context.Context, tx *sql.Tx, article *entity.Article) (int64, error) {
	const query = `
INSERT INTO articles
       (crawler_id, task_id, link, title, summary, content, keywords,
        published_at, created_at, updated_at, scrape_status, is_scraped,
        is_ai_related, is_partial_save, scrape_error, last_scrape_attempt,
        source, source_url, category, author, article_type, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, $13, $14, $15,
        $16, $17, $18, $19, $20, $21)
RETURNING id`
	now := article.UpdatedAt
	var id int64
	err := tx.QueryRowContext(ctx, query,
		article.CrawlerID, article.TaskID, article.Link, article.Title,
		article.Summary, article.Content, pq.Array(article.Keywords),
		article.PublishedAt, now, string(article.ScrapeStatus), article.IsScraped,
		article.IsAIRelated, article.IsPartialSave, article.ScrapeError,
		article.LastScrapeAttempt,
		article.Source, article.SourceURL, article.Category, article.Author,
		article.ArticleType, pq.Array(article.Tags),
	).Scan(&id)
	return id, err
}

func (repo *ArticleRepo) upsertTx(ctx context.Context, tx *sql.Tx, article *entity.Article) (int64, error) {
	const query = `
INSERT INTO articles
       (crawler_id, task_id, link, title, summary, content, keywords,
        published_at, created_at, updated_at, scrape_status, is_scraped,
        is_ai_related, is_partial_save, scrape_error, last_scrape_attempt,
        source, source_url, category, author, article_type, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, $13, $14, $15,
        $16, $17, $18, $19, $20, $21)
ON CONFLICT (link) DO UPDATE SET
       title               = COALESCE(NULLIF(EXCLUDED.title, ''), articles.title),
       summary             = COALESCE(NULLIF(EXCLUDED.summary, ''), articles.summary),
       content             = COALESCE(NULLIF(EXCLUDED.content, ''), articles.content),
       keywords            = CASE WHEN array_length(EXCLUDED.keywords, 1) > 0
                                   THEN EXCLUDED.keywords ELSE articles.keywords END,
       updated_at          = $9,
       scrape_status       = EXCLUDED.scrape_status,
       is_scraped          = EXCLUDED.is_scraped,
       is_ai_related       = EXCLUDED.is_ai_related,
       is_partial_save     = EXCLUDED.is_partial_save,
       scrape_error        = COALESCE(NULLIF(EXCLUDED.scrape_error, ''), articles.scrape_error),
       last_scrape_attempt = CASE WHEN EXCLUDED.last_scrape_attempt > '0001-01-01'
                                   THEN EXCLUDED.last_scrape_attempt ELSE articles.last_scrape_attempt END,
       source              = COALESCE(NULLIF(EXCLUDED.source, ''), articles.source),
       source_url          = COALESCE(NULLIF(EXCLUDED.source_url, ''), articles.source_url),
       category            = COALESCE(NULLIF(EXCLUDED.category, ''), articles.category),
       author              = COALESCE(NULLIF(EXCLUDED.author, ''), articles.author),
       article_type        = COALESCE(NULLIF(EXCLUDED.article_type, ''), articles.article_type),
       tags                = CASE WHEN array_length(EXCLUDED.tags, 1) > 0
                                   THEN EXCLUDED.tags ELSE articles.tags END
RETURNING id`
	now := article.UpdatedAt
	var id int64
	err := tx.QueryRowContext(ctx, query,
		article.CrawlerID, article.TaskID, article.Link, article.Title,
		article.Summary, article.Content, pq.Array(article.Keywords),
		article.PublishedAt, now, string(article.ScrapeStatus), article.IsScraped,
		article.IsAIRelated, article.IsPartialSave, article.ScrapeError,
		article.LastScrapeAttempt,
		article.Source, article.SourceURL, article.Category, article.Author,
		article.ArticleType, pq.Array(article.Tags),
	).Scan(&id)
	return id, err
}

// ExistsByLink batches a link-existence check to avoid an N+1 query
// pattern during link-collection dedup.
func (repo *ArticleRepo) ExistsByLink(ctx context.Context, links []string) (map[string]bool, error) {
	result := make(map[string]bool, len(links))
	if len(links) == 0 {
		return result, nil
	}

	const query = `SELECT link FROM articles WHERE link = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(links))
	if err != nil {
		return nil, fmt.Errorf("ExistsByLink: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("ExistsByLink: Scan: %w", err)
		}
		result[link] = true
	}
	return result, rows.Err()
}

func (repo *ArticleRepo) scanRow(row *sql.Row) (*entity.Article, error) {
	var a entity.Article
	var keywords, tags pq.StringArray
	var scrapeStatus string
	err := row.Scan(&a.ID, &a.CrawlerID, &a.TaskID, &a.Link, &a.Title, &a.Summary,
		&a.Content, &keywords, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
		&scrapeStatus, &a.IsScraped, &a.IsAIRelated, &a.IsPartialSave,
		&a.ScrapeError, &a.LastScrapeAttempt,
		&a.Source, &a.SourceURL, &a.Category, &a.Author, &a.ArticleType, &tags)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Keywords = keywords
	a.Tags = tags
	a.ScrapeStatus = entity.ArticleScrapeStatus(scrapeStatus)
	return &a, nil
}

// recordDBQuery is called via defer with the operation's start time, so
// the observed duration includes the full query round-trip.
func recordDBQuery(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}

const articleColumns = `id, crawler_id, task_id, link, title, summary, content, keywords,
       published_at, created_at, updated_at, scrape_status, is_scraped,
       is_ai_related, is_partial_save, scrape_error, last_scrape_attempt,
       source, source_url, category, author, article_type, tags`

func (repo *ArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	a, err := repo.scanRow(repo.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

func (repo *ArticleRepo) GetByLink(ctx context.Context, link string) (*entity.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE link = $1`
	a, err := repo.scanRow(repo.db.QueryRowContext(ctx, query, link))
	if err != nil {
		return nil, fmt.Errorf("GetByLink: %w", err)
	}
	return a, nil
}

func (repo *ArticleRepo) FindAdvanced(ctx context.Context, filters repository.ArticleFindFilters, page, pageSize int) (repository.ArticlePage, error) {
	defer recordDBQuery("find_articles_advanced", time.Now())
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	whereClause, args := repo.qb.BuildWhereClause(nil, filters, "")

	countQuery := `SELECT COUNT(*) FROM articles ` + whereClause
	var total int64
	if err := repo.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return repository.ArticlePage{}, fmt.Errorf("FindAdvanced: count: %w", err)
	}

	offset := (page - 1) * pageSize
	selectQuery := fmt.Sprintf(`SELECT %s FROM articles %s ORDER BY published_at DESC LIMIT $%d OFFSET $%d`,
		articleColumns, whereClause, len(args)+1, len(args)+2)
	rows, err := repo.db.QueryContext(ctx, selectQuery, append(args, pageSize, offset)...)
	if err != nil {
		return repository.ArticlePage{}, fmt.Errorf("FindAdvanced: select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Article, 0, pageSize)
	for rows.Next() {
		var a entity.Article
		var keywords, tags pq.StringArray
		var scrapeStatus string
		if err := rows.Scan(&a.ID, &a.CrawlerID, &a.TaskID, &a.Link, &a.Title, &a.Summary,
			&a.Content, &keywords, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
			&scrapeStatus, &a.IsScraped, &a.IsAIRelated, &a.IsPartialSave,
			&a.ScrapeError, &a.LastScrapeAttempt,
			&a.Source, &a.SourceURL, &a.Category, &a.Author, &a.ArticleType, &tags); err != nil {
			return repository.ArticlePage{}, fmt.Errorf("FindAdvanced: Scan: %w", err)
		}
		a.Keywords = keywords
		a.Tags = tags
		a.ScrapeStatus = entity.ArticleScrapeStatus(scrapeStatus)
		items = append(items, &a)
	}
	if err := rows.Err(); err != nil {
		return repository.ArticlePage{}, fmt.Errorf("FindAdvanced: rows: %w", err)
	}

	return repository.ArticlePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (repo *ArticleRepo) FindByKeywords(ctx context.Context, keywords []string, filters repository.ArticleFindFilters) ([]*entity.Article, error) {
	if len(keywords) == 0 {
		return []*entity.Article{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, search.DefaultSearchTimeout)
	defer cancel()

	whereClause, args := repo.qb.BuildWhereClause(keywords, filters, "")
	query := fmt.Sprintf(`SELECT %s FROM articles %s ORDER BY published_at DESC`, articleColumns, whereClause)

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindByKeywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 100)
	for rows.Next() {
		var a entity.Article
		var kw, tags pq.StringArray
		var scrapeStatus string
		if err := rows.Scan(&a.ID, &a.CrawlerID, &a.TaskID, &a.Link, &a.Title, &a.Summary,
			&a.Content, &kw, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
			&scrapeStatus, &a.IsScraped, &a.IsAIRelated, &a.IsPartialSave,
			&a.ScrapeError, &a.LastScrapeAttempt,
			&a.Source, &a.SourceURL, &a.Category, &a.Author, &a.ArticleType, &tags); err != nil {
			return nil, fmt.Errorf("FindByKeywords: Scan: %w", err)
		}
		a.Keywords = kw
		a.Tags = tags
		a.ScrapeStatus = entity.ArticleScrapeStatus(scrapeStatus)
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

func (repo *ArticleRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM articles WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}
