package repository

import (
	"context"
	"time"

	"crawlorch/internal/domain/entity"
)

// TaskFindFilters narrows a paginated task listing.
type TaskFindFilters struct {
	CrawlerID *int64
	Status    *entity.TaskStatus
}

// TaskPage is one page of a paginated task listing.
type TaskPage struct {
	Items    []*entity.Task
	Total    int64
	Page     int
	PageSize int
}

// TaskRepository persists Task rows: creation, status/progress updates,
// retry bookkeeping and advanced find.
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) (int64, error)
	Get(ctx context.Context, id int64) (*entity.Task, error)
	// Update overwrites a task's mutable request-shaped fields (scrape mode,
	// task_args, max_retries). id/created_at/crawler_id are never touched
	// here — the service layer enforces that immutability before calling in.
	Update(ctx context.Context, id int64, scrapeMode entity.ScrapeMode, taskArgs map[string]any, maxRetries int) error
	Delete(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error
	UpdateProgress(ctx context.Context, id int64, phase entity.ScrapePhase, pct int) error
	IncrementRetryCount(ctx context.Context, id int64) (int, error)
	ResetRetryCount(ctx context.Context, id int64) error
	UpdateMaxRetries(ctx context.Context, id int64, maxRetries int) error
	Complete(ctx context.Context, id int64, status entity.TaskStatus, success bool, message string, partialSaved bool) error
	FindAdvanced(ctx context.Context, filters TaskFindFilters, page, pageSize int) (TaskPage, error)
	FindFailedSince(ctx context.Context, since time.Time) ([]int64, error)
}

// TaskHistoryRepository records task lifecycle transitions.
type TaskHistoryRepository interface {
	Append(ctx context.Context, history *entity.TaskHistory) error
	// Update patches an existing history row's terminal state and message,
	// scoped to history.TaskID: it must error (no row touched) if ID does
	// not belong to that task, so update_task_status's history_id override
	// can never cross-write another task's history.
	Update(ctx context.Context, history *entity.TaskHistory) error
	ListForTask(ctx context.Context, taskID int64, limit, offset int) ([]*entity.TaskHistory, error)
}
