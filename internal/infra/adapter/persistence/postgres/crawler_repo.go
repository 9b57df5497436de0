package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/repository"
)

// CrawlerRepo is the postgres-backed CrawlerRepository.
type CrawlerRepo struct{ db *sql.DB }

func NewCrawlerRepo(db *sql.DB) repository.CrawlerRepository {
	return &CrawlerRepo{db: db}
}

const crawlerColumns = `id, name, base_url, list_url_template, active, cron_expression,
       timezone, last_run_at, scraper_type, scraper_config, task_args_defaults`

func (repo *CrawlerRepo) scan(row *sql.Row) (*entity.Crawler, error) {
	var c entity.Crawler
	var scraperConfig, taskArgsDefaults []byte
	err := row.Scan(&c.ID, &c.Name, &c.BaseURL, &c.ListURLTemplate, &c.Active,
		&c.CronExpression, &c.Timezone, &c.LastRunAt, &c.ScraperType,
		&scraperConfig, &taskArgsDefaults)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(scraperConfig) > 0 {
		c.ScraperConfig = &entity.ScraperConfig{}
		if err := json.Unmarshal(scraperConfig, c.ScraperConfig); err != nil {
			return nil, fmt.Errorf("unmarshal scraper_config: %w", err)
		}
	}
	if len(taskArgsDefaults) > 0 {
		if err := json.Unmarshal(taskArgsDefaults, &c.TaskArgsDefaults); err != nil {
			return nil, fmt.Errorf("unmarshal task_args_defaults: %w", err)
		}
	}
	return &c, nil
}

func (repo *CrawlerRepo) Get(ctx context.Context, id int64) (*entity.Crawler, error) {
	query := `SELECT ` + crawlerColumns + ` FROM crawlers WHERE id = $1`
	c, err := repo.scan(repo.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return c, nil
}

func (repo *CrawlerRepo) List(ctx context.Context) ([]*entity.Crawler, error) {
	return repo.query(ctx, `SELECT `+crawlerColumns+` FROM crawlers ORDER BY id`)
}

func (repo *CrawlerRepo) ListActive(ctx context.Context) ([]*entity.Crawler, error) {
	return repo.query(ctx, `SELECT `+crawlerColumns+` FROM crawlers WHERE active ORDER BY id`)
}

func (repo *CrawlerRepo) query(ctx context.Context, query string, args ...any) ([]*entity.Crawler, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Crawler, 0, 16)
	for rows.Next() {
		var c entity.Crawler
		var scraperConfig, taskArgsDefaults []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.BaseURL, &c.ListURLTemplate, &c.Active,
			&c.CronExpression, &c.Timezone, &c.LastRunAt, &c.ScraperType,
			&scraperConfig, &taskArgsDefaults); err != nil {
			return nil, fmt.Errorf("query: Scan: %w", err)
		}
		if len(scraperConfig) > 0 {
			c.ScraperConfig = &entity.ScraperConfig{}
			_ = json.Unmarshal(scraperConfig, c.ScraperConfig)
		}
		if len(taskArgsDefaults) > 0 {
			_ = json.Unmarshal(taskArgsDefaults, &c.TaskArgsDefaults)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (repo *CrawlerRepo) Create(ctx context.Context, c *entity.Crawler) error {
	scraperConfig, err := json.Marshal(c.ScraperConfig)
	if err != nil {
		return fmt.Errorf("Create: marshal scraper_config: %w", err)
	}
	taskArgsDefaults, err := json.Marshal(c.TaskArgsDefaults)
	if err != nil {
		return fmt.Errorf("Create: marshal task_args_defaults: %w", err)
	}

	const query = `
INSERT INTO crawlers
       (name, base_url, list_url_template, active, cron_expression, timezone,
        scraper_type, scraper_config, task_args_defaults)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	return repo.db.QueryRowContext(ctx, query,
		c.Name, c.BaseURL, c.ListURLTemplate, c.Active, c.CronExpression, c.Timezone,
		c.ScraperType, scraperConfig, taskArgsDefaults,
	).Scan(&c.ID)
}

func (repo *CrawlerRepo) Update(ctx context.Context, c *entity.Crawler) error {
	scraperConfig, _ := json.Marshal(c.ScraperConfig)
	taskArgsDefaults, _ := json.Marshal(c.TaskArgsDefaults)

	const query = `
UPDATE crawlers SET
       name = $1, base_url = $2, list_url_template = $3, active = $4,
       cron_expression = $5, timezone = $6, scraper_type = $7,
       scraper_config = $8, task_args_defaults = $9
WHERE id = $10`
	res, err := repo.db.ExecContext(ctx, query,
		c.Name, c.BaseURL, c.ListURLTemplate, c.Active, c.CronExpression, c.Timezone,
		c.ScraperType, scraperConfig, taskArgsDefaults, c.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: %w", entity.ErrNotFound)
	}
	return nil
}

func (repo *CrawlerRepo) Delete(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM crawlers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: %w", entity.ErrNotFound)
	}
	return nil
}

func (repo *CrawlerRepo) TouchLastRunAt(ctx context.Context, id int64, t time.Time) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE crawlers SET last_run_at = $1 WHERE id = $2`, t, id)
	if err != nil {
		return fmt.Errorf("TouchLastRunAt: %w", err)
	}
	return nil
}
