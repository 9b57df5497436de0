// Package task exposes the Task Service Facade over HTTP: a thin admin
// surface for creating, inspecting, cancelling and searching crawl tasks.
// It is not exercised by the orchestration core itself (see SPEC_FULL.md
// §1 Non-goals: the core has no required CLI/HTTP surface), but the
// facade's envelope return type maps onto it directly, and it is the
// concrete home for the respond/pathutil/requestid ambient HTTP stack.
package task

import (
	"time"

	"crawlorch/internal/domain/entity"
)

// TaskDTO is the wire shape for a Task returned over HTTP.
type TaskDTO struct {
	ID            int64             `json:"id"`
	CrawlerID     int64             `json:"crawler_id"`
	Status        entity.TaskStatus `json:"status"`
	ScrapeMode    entity.ScrapeMode `json:"scrape_mode"`
	TaskArgs      map[string]any    `json:"task_args"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	ScrapePhase   entity.ScrapePhase `json:"scrape_phase"`
	ProgressPct   int               `json:"progress_pct"`
	ResultMessage string            `json:"result_message"`
	ResultSuccess bool              `json:"result_success"`
	PartialSaved  bool              `json:"partial_saved"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toDTO(t *entity.Task) TaskDTO {
	return TaskDTO{
		ID: t.ID, CrawlerID: t.CrawlerID, Status: t.Status, ScrapeMode: t.ScrapeMode,
		TaskArgs: t.TaskArgs, RetryCount: t.RetryCount, MaxRetries: t.MaxRetries,
		ScrapePhase: t.ScrapePhase, ProgressPct: t.ProgressPct,
		ResultMessage: t.ResultMessage, ResultSuccess: t.ResultSuccess, PartialSaved: t.PartialSaved,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

// ArticleDTO is the wire shape for an Article returned over HTTP.
type ArticleDTO struct {
	ID           int64                      `json:"id"`
	CrawlerID    int64                      `json:"crawler_id"`
	TaskID       int64                      `json:"task_id"`
	Link         string                     `json:"link"`
	Title        string                     `json:"title"`
	Summary      string                     `json:"summary"`
	Source       string                     `json:"source"`
	SourceURL    string                     `json:"source_url"`
	Category     string                     `json:"category"`
	Author       string                     `json:"author"`
	ArticleType  string                     `json:"article_type"`
	Tags         []string                   `json:"tags"`
	PublishedAt  time.Time                  `json:"published_at"`
	ScrapeStatus entity.ArticleScrapeStatus `json:"scrape_status"`
	IsScraped    bool                       `json:"is_scraped"`
	IsAIRelated  bool                       `json:"is_ai_related"`
}

func toArticleDTO(a *entity.Article) ArticleDTO {
	return ArticleDTO{
		ID: a.ID, CrawlerID: a.CrawlerID, TaskID: a.TaskID, Link: a.Link, Title: a.Title,
		Summary: a.Summary, Source: a.Source, SourceURL: a.SourceURL, Category: a.Category,
		Author: a.Author, ArticleType: a.ArticleType, Tags: a.Tags,
		PublishedAt: a.PublishedAt, ScrapeStatus: a.ScrapeStatus,
		IsScraped: a.IsScraped, IsAIRelated: a.IsAIRelated,
	}
}

// envelope mirrors the facade's Result[T] shape for JSON responses.
type envelope struct {
	Success bool `json:"success"`
	Message string `json:"message"`
	Payload any  `json:"payload,omitempty"`
}
