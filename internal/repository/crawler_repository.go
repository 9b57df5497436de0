package repository

import (
	"context"
	"time"

	"crawlorch/internal/domain/entity"
)

// CrawlerRepository persists Crawler configuration rows: base URL,
// cron schedule, scraper config and task_args defaults.
type CrawlerRepository interface {
	Get(ctx context.Context, id int64) (*entity.Crawler, error)
	List(ctx context.Context) ([]*entity.Crawler, error)
	ListActive(ctx context.Context) ([]*entity.Crawler, error)
	Create(ctx context.Context, crawler *entity.Crawler) error
	Update(ctx context.Context, crawler *entity.Crawler) error
	Delete(ctx context.Context, id int64) error
	TouchLastRunAt(ctx context.Context, id int64, t time.Time) error
}
