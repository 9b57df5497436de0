package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crawlorch/internal/domain/entity"
	pgRepo "crawlorch/internal/infra/adapter/persistence/postgres"
	"crawlorch/internal/infra/db"
	"crawlorch/internal/infra/fetcher"
	"crawlorch/internal/infra/scraper"
	"crawlorch/internal/infra/sitefetcher"
	workerPkg "crawlorch/internal/infra/worker"
	"crawlorch/internal/observability/metrics"
	"crawlorch/internal/orchestrator/progress"
	"crawlorch/internal/orchestrator/runner"
	"crawlorch/internal/orchestrator/scheduler"
	"crawlorch/internal/pkg/config"
	"crawlorch/internal/repository"
	taskUC "crawlorch/internal/usecase/task"
)

func waitForMigrations(logger *slog.Logger, database *sql.DB) {
	const probe = "SELECT 1 FROM crawlers LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	loadTaskArgDefaults(logger)
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("max_concurrent_dispatch", workerConfig.MaxConcurrentDispatch),
		slog.Duration("default_task_timeout", workerConfig.DefaultTaskTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	svc, r := setupTaskService(logger, database)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	metricsSrv := startMetricsServer(ctx, logger, r)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	adminSrv := startAdminServer(ctx, logger, svc)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = adminSrv.Shutdown(shutdownCtx)
	}()

	poller := scheduler.NewPoller(crawlerLister{svc.Crawlers}, svc)
	poller.PollInterval = workerConfig.PollInterval
	poller.MaxConcurrent = workerConfig.MaxConcurrentDispatch

	go poller.Run(ctx)
	go runFailedTaskSweep(ctx, logger, svc, workerMetrics)
	go runGaugeRefresh(ctx, svc, database)

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.String("timezone", workerConfig.Timezone))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")
	cancel()
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// loadTaskArgDefaults applies an optional operator-supplied YAML file of
// task_args default overrides (path from TASK_ARG_DEFAULTS_FILE) on top
// of entity.DefaultTaskArgs. Absence of the file is not an error.
func loadTaskArgDefaults(logger *slog.Logger) {
	path := config.LoadEnvString("TASK_ARG_DEFAULTS_FILE", "")
	if path == "" {
		return
	}
	defaults, err := config.LoadTaskArgDefaults(path)
	if err != nil {
		logger.Error("failed to load task arg defaults", slog.String("path", path), slog.Any("error", err))
		return
	}
	defaults.Apply(entity.DefaultTaskArgs)
	logger.Info("task arg defaults overridden", slog.String("path", path))
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// setupTaskService wires the postgres repositories, the Site Fetcher
// adapter, the Task Runner and the Task Service Facade together.
func setupTaskService(logger *slog.Logger, database *sql.DB) (*taskUC.Service, *runner.Runner) {
	crawlerRepo := pgRepo.NewCrawlerRepo(database)
	taskRepo := pgRepo.NewTaskRepo(database)
	historyRepo := pgRepo.NewTaskHistoryRepo(database)
	articleRepo := pgRepo.NewArticleRepo(database)

	httpClient := createHTTPClient()
	rssFetcher := scraper.NewRSSFetcher(httpClient)

	webScraperClient := createWebScraperHTTPClient()
	scraperFactory := scraper.NewScraperFactory(webScraperClient)
	webScrapers := scraperFactory.CreateScrapers()
	logger.Info("web scrapers initialized", slog.Int("count", len(webScrapers)))

	contentFetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load content fetch configuration", slog.Any("error", err))
		logger.Warn("content fetching disabled due to configuration error")
		contentFetchConfig = fetcher.DefaultConfig()
		contentFetchConfig.Enabled = false
	}
	var contentFetcher *fetcher.ReadabilityFetcher
	if contentFetchConfig.Enabled {
		contentFetcher = fetcher.NewReadabilityFetcher(contentFetchConfig)
		logger.Info("content fetching enabled",
			slog.Int("threshold", contentFetchConfig.Threshold),
			slog.Duration("timeout", contentFetchConfig.Timeout))
	} else {
		logger.Info("content fetching disabled")
	}

	fetchRPS := float64(config.LoadEnvInt("FETCH_RATE_LIMIT_RPS", 5, func(v int) error { return config.ValidateIntRange(v, 1, 1000) }).Value.(int))
	fetchBurst := config.LoadEnvInt("FETCH_RATE_LIMIT_BURST", 2, func(v int) error { return config.ValidateIntRange(v, 1, 1000) }).Value.(int)
	limiter := sitefetcher.NewRateLimiter(fetchRPS, fetchBurst)
	fetcherAdapter := sitefetcher.New(crawlerRepo, rssFetcher, webScrapers, contentFetcher, limiter)

	broadcaster := progress.New()
	r := runner.New(articleRepo, broadcaster, fetcherAdapter, time.Now)

	svc := taskUC.New(crawlerRepo, taskRepo, historyRepo, articleRepo, r)
	return svc, r
}

// createHTTPClient creates an HTTP client with timeouts and connection pooling.
// TLS 1.2+ is enforced for security.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// createWebScraperHTTPClient creates an HTTP client for web scraping with
// a shorter timeout; SSRF/redirect validation is handled by the scraper
// implementations themselves.
func createWebScraperHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// crawlerLister adapts CrawlerRepository.ListActive to the Poller's
// CrawlerLister interface.
type crawlerLister struct {
	repo repository.CrawlerRepository
}

func (l crawlerLister) ListActiveSchedules(ctx context.Context) ([]scheduler.CrawlerSchedule, error) {
	crawlers, err := l.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	schedules := make([]scheduler.CrawlerSchedule, 0, len(crawlers))
	for _, c := range crawlers {
		schedules = append(schedules, scheduler.CrawlerSchedule{
			CrawlerID:      c.ID,
			CronExpression: c.CronExpression,
			LastRunAt:      c.LastRunAt,
			Active:         c.Active,
		})
	}
	return schedules, nil
}

// runGaugeRefresh periodically recomputes the crawlers_total and
// articles_total gauges from the repositories, since these are point-in-time
// counts rather than something the orchestration path updates incrementally.
func runGaugeRefresh(ctx context.Context, svc *taskUC.Service, database *sql.DB) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	refresh := func() {
		if crawlers, err := svc.Crawlers.List(ctx); err == nil {
			metrics.UpdateCrawlersTotal(len(crawlers))
		}
		if page, err := svc.Articles.FindAdvanced(ctx, repository.ArticleFindFilters{}, 1, 1); err == nil {
			metrics.UpdateArticlesTotal(int(page.Total))
		}
		stats := database.Stats()
		metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// runFailedTaskSweep periodically retries tasks that failed within the
// retry window, independent of the cron due-task path.
func runFailedTaskSweep(ctx context.Context, logger *slog.Logger, svc *taskUC.Service, metrics *workerPkg.WorkerMetrics) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := scheduler.FindFailedTasks(ctx, svc.Tasks, time.Now(), 1)
			if err != nil {
				logger.Error("failed task sweep failed", slog.Any("error", err))
				continue
			}
			for _, id := range ids {
				result := svc.RetryTask(ctx, id)
				if !result.Success {
					continue
				}
				metrics.RecordRetryAttempt()
				go func(taskID int64) {
					runCtx := context.WithoutCancel(ctx)
					svc.RunTask(runCtx, taskID)
				}(id)
			}
		}
	}
}
