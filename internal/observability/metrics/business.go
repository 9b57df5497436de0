package metrics

import (
	"fmt"
	"time"
)

// RecordArticlesFetched records the number of article links fetched from a crawler.
func RecordArticlesFetched(crawlerID int64, count int) {
	ArticlesFetchedTotal.WithLabelValues(fmt.Sprintf("%d", crawlerID)).Add(float64(count))
}

// RecordLinkCollection records metrics for a link-collection phase run.
func RecordLinkCollection(crawlerID int64, duration time.Duration, linksFound int) {
	LinkCollectionDuration.WithLabelValues(fmt.Sprintf("%d", crawlerID)).Observe(duration.Seconds())
	if linksFound > 0 {
		RecordArticlesFetched(crawlerID, linksFound)
	}
}

// RecordLinkCollectionError records an error during link collection.
func RecordLinkCollectionError(crawlerID int64, errorType string) {
	LinkCollectionErrors.WithLabelValues(fmt.Sprintf("%d", crawlerID), errorType).Inc()
}

// RecordContentFetchSuccess records a successful content fetch operation,
// tracking both the duration and size of fetched content.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a skipped content fetch operation, which
// happens when the link-phase content already meets the configured threshold.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_tasks", "upsert_article").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateArticlesTotal updates the total count of articles in the database.
func UpdateArticlesTotal(count int) {
	ArticlesTotal.Set(float64(count))
}

// UpdateCrawlersTotal updates the total count of configured crawlers.
func UpdateCrawlersTotal(count int) {
	CrawlersTotal.Set(float64(count))
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
