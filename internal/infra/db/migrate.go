package db

import "database/sql"

// MigrateUp creates the crawlorch schema: crawlers, tasks, task_history
// and articles. Every statement is idempotent (IF NOT EXISTS / guarded
// DO blocks) so MigrateUp is safe to run on every worker startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS crawlers (
    id                 SERIAL PRIMARY KEY,
    name               TEXT NOT NULL,
    base_url           TEXT NOT NULL,
    list_url_template  TEXT NOT NULL DEFAULT '',
    active             BOOLEAN NOT NULL DEFAULT TRUE,
    cron_expression    TEXT NOT NULL DEFAULT '',
    timezone           TEXT NOT NULL DEFAULT 'UTC',
    last_run_at        TIMESTAMPTZ,
    scraper_type       VARCHAR(20) NOT NULL DEFAULT 'RSS',
    scraper_config     JSONB,
    task_args_defaults JSONB
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS tasks (
    id             SERIAL PRIMARY KEY,
    crawler_id     INTEGER NOT NULL REFERENCES crawlers(id),
    status         VARCHAR(20) NOT NULL,
    scrape_mode    VARCHAR(20) NOT NULL,
    task_args      JSONB NOT NULL DEFAULT '{}',
    retry_count    INT NOT NULL DEFAULT 0,
    max_retries    INT NOT NULL DEFAULT 3,
    scrape_phase   VARCHAR(20) NOT NULL DEFAULT '',
    progress_pct   INT NOT NULL DEFAULT 0,
    result_message TEXT NOT NULL DEFAULT '',
    result_success BOOLEAN NOT NULL DEFAULT FALSE,
    partial_saved  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at     TIMESTAMPTZ,
    completed_at   TIMESTAMPTZ
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS task_history (
    id         SERIAL PRIMARY KEY,
    task_id    INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    from_state VARCHAR(20) NOT NULL DEFAULT '',
    to_state   VARCHAR(20) NOT NULL,
    message    TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id                  SERIAL PRIMARY KEY,
    crawler_id          INTEGER NOT NULL REFERENCES crawlers(id),
    task_id             INTEGER REFERENCES tasks(id),
    link                TEXT NOT NULL UNIQUE,
    title               TEXT NOT NULL DEFAULT '',
    summary             TEXT NOT NULL DEFAULT '',
    content             TEXT NOT NULL DEFAULT '',
    keywords            TEXT[] NOT NULL DEFAULT '{}',
    published_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    scrape_status       VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    is_scraped          BOOLEAN NOT NULL DEFAULT FALSE,
    is_ai_related       BOOLEAN NOT NULL DEFAULT FALSE,
    is_partial_save     BOOLEAN NOT NULL DEFAULT FALSE,
    scrape_error        TEXT NOT NULL DEFAULT '',
    last_scrape_attempt TIMESTAMPTZ,
    source              TEXT NOT NULL DEFAULT '',
    source_url          TEXT NOT NULL DEFAULT '',
    category            TEXT NOT NULL DEFAULT '',
    author              TEXT NOT NULL DEFAULT '',
    article_type        TEXT NOT NULL DEFAULT '',
    tags                TEXT[] NOT NULL DEFAULT '{}'
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_crawler_id ON tasks(crawler_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_task_history_task_id ON task_history(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_crawler_id ON articles(crawler_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_task_id ON articles(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_scrape_status ON articles(scrape_status)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category)`,
		`CREATE INDEX IF NOT EXISTS idx_crawlers_active ON crawlers(active) WHERE active = TRUE`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// pg_trgm speeds up the keyword ILIKE search in ArticleRepository.FindByKeywords.
	// Ignored on failure: requires superuser privileges some environments don't grant.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	searchIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_title_gin ON articles USING gin(title gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_summary_gin ON articles USING gin(summary gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		_, _ = db.Exec(idx)
	}

	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_crawler_scraper_type'
    ) THEN
        ALTER TABLE crawlers ADD CONSTRAINT chk_crawler_scraper_type
        CHECK (scraper_type IN ('RSS', 'Webflow', 'NextJS', 'Remix'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown drops the crawlorch schema in dependency order. Use with
// caution: this deletes all crawler, task and article data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS articles CASCADE`,
		`DROP TABLE IF EXISTS task_history CASCADE`,
		`DROP TABLE IF EXISTS tasks CASCADE`,
		`DROP TABLE IF EXISTS crawlers CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
