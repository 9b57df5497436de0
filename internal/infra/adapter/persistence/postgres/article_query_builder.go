package postgres

import (
	"fmt"
	"strings"

	"crawlorch/internal/pkg/search"
	"crawlorch/internal/repository"

	"github.com/lib/pq"
)

// ArticleQueryBuilder builds WHERE clauses for article search in
// PostgreSQL. It is shared between the COUNT and SELECT queries of
// FindAdvanced/FindByKeywords so the filter logic lives in one place.
// PostgreSQL-specific: uses ILIKE for case-insensitive search and $N
// placeholders.
type ArticleQueryBuilder struct{}

// NewArticleQueryBuilder creates a new query builder instance.
func NewArticleQueryBuilder() *ArticleQueryBuilder {
	return &ArticleQueryBuilder{}
}

// BuildWhereClause builds a WHERE clause and its positional arguments
// for an article query. keywords (when non-empty) apply multi-keyword
// AND logic across title, summary and content; filters narrows by
// crawler, task, scrape status, is_scraped and published_at range.
// Returns an empty clause if no condition applies.
func (qb *ArticleQueryBuilder) BuildWhereClause(keywords []string, filters repository.ArticleFindFilters, tableAlias string) (clause string, args []interface{}) {
	col := func(name string) string {
		if tableAlias != "" {
			return tableAlias + "." + name
		}
		return name
	}

	var conditions []string
	paramIndex := 1

	for _, keyword := range keywords {
		escaped := search.EscapeILIKE(keyword)
		conditions = append(conditions, fmt.Sprintf("(%s ILIKE $%d OR %s ILIKE $%d OR %s ILIKE $%d)",
			col("title"), paramIndex, col("summary"), paramIndex, col("content"), paramIndex))
		args = append(args, escaped)
		paramIndex++
	}

	if filters.CrawlerID != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("crawler_id"), paramIndex))
		args = append(args, *filters.CrawlerID)
		paramIndex++
	}
	if filters.TaskID != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("task_id"), paramIndex))
		args = append(args, *filters.TaskID)
		paramIndex++
	}
	if filters.ScrapeStatus != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("scrape_status"), paramIndex))
		args = append(args, string(*filters.ScrapeStatus))
		paramIndex++
	}
	if filters.IsScraped != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("is_scraped"), paramIndex))
		args = append(args, *filters.IsScraped)
		paramIndex++
	}
	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", col("published_at"), paramIndex))
		args = append(args, *filters.From)
		paramIndex++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", col("published_at"), paramIndex))
		args = append(args, *filters.To)
		paramIndex++
	}
	if filters.Category != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("category"), paramIndex))
		args = append(args, *filters.Category)
		paramIndex++
	}
	if filters.Source != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("source"), paramIndex))
		args = append(args, *filters.Source)
		paramIndex++
	}
	if len(filters.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("%s && $%d", col("tags"), paramIndex))
		args = append(args, pq.Array(filters.Tags))
		paramIndex++
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
