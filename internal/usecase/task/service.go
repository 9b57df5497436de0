// Package task implements the Task Service Facade: the single entry
// point callers (the scheduler, an admin HTTP surface, tests) use to
// create, inspect, cancel and search crawl tasks. It validates input,
// persists state transitions, and hands accepted runs to the Task
// Runner.
package task

import (
	"context"
	"fmt"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/domain/validation"
	"crawlorch/internal/orchestrator/runner"
	"crawlorch/internal/repository"
)

// Result is the envelope every facade operation returns: a success
// flag, a human-readable message, and an optional payload.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Payload T      `json:"payload,omitempty"`
}

func ok[T any](payload T, message string) Result[T] {
	return Result[T]{Success: true, Message: message, Payload: payload}
}

func fail[T any](message string) Result[T] {
	return Result[T]{Success: false, Message: message}
}

// Service is the Task Service Facade.
type Service struct {
	Crawlers repository.CrawlerRepository
	Tasks    repository.TaskRepository
	History  repository.TaskHistoryRepository
	Articles repository.ArticleRepository
	Runner   *runner.Runner
	Now      func() time.Time
}

// New constructs a Service with defaults filled in.
func New(crawlers repository.CrawlerRepository, tasks repository.TaskRepository, history repository.TaskHistoryRepository, articles repository.ArticleRepository, r *runner.Runner) *Service {
	return &Service{Crawlers: crawlers, Tasks: tasks, History: history, Articles: articles, Runner: r, Now: time.Now}
}

// CreateInput is the request shape for CreateTask.
type CreateInput struct {
	CrawlerID  int64
	ScrapeMode entity.ScrapeMode
	TaskArgs   map[string]any
}

// CreateTask validates args (merged over the crawler's defaults),
// persists a new Task in INIT state, and records the initial history
// row. It does not start the run — call RunTask (or let the Scheduler
// dispatch it) to do that.
func (s *Service) CreateTask(ctx context.Context, in CreateInput) Result[*entity.Task] {
	crawler, err := s.Crawlers.Get(ctx, in.CrawlerID)
	if err != nil {
		return fail[*entity.Task](fmt.Sprintf("crawler lookup failed: %v", err))
	}
	if crawler == nil {
		return fail[*entity.Task]("crawler not found")
	}

	if !in.ScrapeMode.Valid() {
		return fail[*entity.Task]("invalid scrape_mode")
	}

	merged := entity.MergeTaskArgs(entity.DefaultTaskArgs, crawler.TaskArgsDefaults)
	merged = entity.MergeTaskArgs(merged, in.TaskArgs)

	if err := validation.ValidateTaskArgs(merged); err != nil {
		return fail[*entity.Task](err.Error())
	}

	maxRetries := 3
	if v, ok := merged["max_retries"].(int); ok {
		maxRetries = v
	}

	t := &entity.Task{
		CrawlerID:  in.CrawlerID,
		Status:     entity.TaskStatusInit,
		ScrapeMode: in.ScrapeMode,
		TaskArgs:   merged,
		MaxRetries: maxRetries,
	}

	id, err := s.Tasks.Create(ctx, t)
	if err != nil {
		return fail[*entity.Task](fmt.Sprintf("create task failed: %v", err))
	}
	t.ID = id

	_ = s.History.Append(ctx, &entity.TaskHistory{
		TaskID:    id,
		FromState: "",
		ToState:   entity.TaskStatusInit,
		Message:   "task created",
	})

	return ok(t, "task created")
}

// GetTask fetches a task by ID.
func (s *Service) GetTask(ctx context.Context, id int64) Result[*entity.Task] {
	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}
	return ok(t, "ok")
}

// RunTask transitions task through LINK_COLLECTION/CONTENT_SCRAPING/
// SAVE_* as the Task Runner executes it, persisting the terminal state
// and history row. Intended to run in its own goroutine per the
// one-goroutine-per-run concurrency model; callers that need the
// result synchronously can simply await this call.
func (s *Service) RunTask(ctx context.Context, taskID int64) Result[*entity.Task] {
	t, err := s.Tasks.Get(ctx, taskID)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}
	if t.Status.Terminal() {
		return fail[*entity.Task]("task already in a terminal state")
	}

	s.transition(ctx, t, entity.TaskStatusLinkCollection, "run started")

	result := s.Runner.Execute(ctx, t)

	if err := s.Tasks.Complete(ctx, taskID, result.Status, result.Success, result.Message, result.PartialSaved); err != nil {
		return fail[*entity.Task](fmt.Sprintf("persist result failed: %v", err))
	}
	_ = s.History.Append(ctx, &entity.TaskHistory{
		TaskID:    taskID,
		FromState: t.Status,
		ToState:   result.Status,
		Message:   result.Message,
	})

	t.Status = result.Status
	t.ResultSuccess = result.Success
	t.ResultMessage = result.Message
	t.PartialSaved = result.PartialSaved
	return ok(t, result.Message)
}

func (s *Service) transition(ctx context.Context, t *entity.Task, to entity.TaskStatus, message string) {
	from := t.Status
	_ = s.Tasks.UpdateStatus(ctx, t.ID, to)
	_ = s.History.Append(ctx, &entity.TaskHistory{TaskID: t.ID, FromState: from, ToState: to, Message: message})
	t.Status = to
}

// CancelTask requests cancellation of a running task. Idempotent:
// returns Success=false if the task is not currently running or was
// already cancelled, matching the original crawler's cancel_task
// contract.
func (s *Service) CancelTask(ctx context.Context, taskID int64) Result[bool] {
	t, err := s.Tasks.Get(ctx, taskID)
	if err != nil {
		return fail[bool](err.Error())
	}
	if t.Status.Terminal() {
		return fail[bool]("task already in terminal state")
	}

	if !s.Runner.Cancel(taskID) {
		return fail[bool]("task is not currently running or was already cancelled")
	}
	return ok(true, "cancellation requested")
}

// RetryTask resets a FAILED task back to INIT for another run, bumping
// its retry counter, and fails with ErrRetryExhausted semantics once
// RetryCount reaches MaxRetries.
func (s *Service) RetryTask(ctx context.Context, taskID int64) Result[*entity.Task] {
	t, err := s.Tasks.Get(ctx, taskID)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}
	if t.Status != entity.TaskStatusFailed {
		return fail[*entity.Task]("only failed tasks can be retried")
	}
	if t.RetryCount >= t.MaxRetries {
		return fail[*entity.Task]("retry attempts exhausted")
	}

	retryCount, err := s.Tasks.IncrementRetryCount(ctx, taskID)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}
	t.RetryCount = retryCount
	s.transition(ctx, t, entity.TaskStatusInit, "retry requested")
	return ok(t, "retry scheduled")
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// UpdateTask applies a partial patch to a task. The patch is first run
// through validation.TaskPatchSchema.ValidateUpdate, which rejects it
// outright if it touches an immutable field (id, created_at, crawler_id)
// or touches none of scrape_mode/task_args/max_retries. scrape_mode is
// then replaced outright, task_args is deep-merged over the existing
// value via entity.MergeTaskArgs and re-validated as a whole (the schema
// check above only validates the override in isolation; the merged
// result can still fail a cross-field rule like max_retries' ceiling),
// and max_retries is replaced after a non-negative check.
func (s *Service) UpdateTask(ctx context.Context, id int64, patch map[string]any) Result[*entity.Task] {
	if err := validation.TaskPatchSchema.ValidateUpdate(patch, validation.TaskImmutableFields...); err != nil {
		return fail[*entity.Task](err.Error())
	}

	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}

	mode := t.ScrapeMode
	if v, ok := patch["scrape_mode"].(string); ok {
		mode = entity.ScrapeMode(v)
	}

	args := t.TaskArgs
	if override, ok := patch["task_args"].(map[string]any); ok {
		args = entity.MergeTaskArgs(t.TaskArgs, override)
		if err := validation.ValidateTaskArgs(args); err != nil {
			return fail[*entity.Task](err.Error())
		}
	}

	maxRetries := t.MaxRetries
	if raw, present := patch["max_retries"]; present {
		v, _ := toInt(raw)
		maxRetries = v
	}

	if err := s.Tasks.Update(ctx, id, mode, args, maxRetries); err != nil {
		return fail[*entity.Task](fmt.Sprintf("update task failed: %v", err))
	}

	t.ScrapeMode = mode
	t.TaskArgs = args
	t.MaxRetries = maxRetries
	return ok(t, "task updated")
}

// DeleteTask removes a task permanently.
func (s *Service) DeleteTask(ctx context.Context, id int64) Result[bool] {
	if err := s.Tasks.Delete(ctx, id); err != nil {
		return fail[bool](fmt.Sprintf("delete task failed: %v", err))
	}
	return ok(true, "task deleted")
}

// UpdateStatusInput is the request shape for UpdateTaskStatus.
type UpdateStatusInput struct {
	Status      entity.TaskStatus
	ScrapePhase entity.ScrapePhase
	// HistoryID, if set, patches that existing history row's to_state and
	// message in place instead of appending a new one. It must already
	// belong to this task.
	HistoryID   *int64
	HistoryData string
}

// UpdateTaskStatus sets a task's status and (optionally) scrape phase, and
// records the transition in task history. When HistoryID is set, the
// existing row it names is patched instead of appending a new one; if that
// row does not belong to this task, the whole call fails with no change
// made to the task's status — the history check runs before any write.
func (s *Service) UpdateTaskStatus(ctx context.Context, id int64, in UpdateStatusInput) Result[*entity.Task] {
	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}

	if in.HistoryID != nil {
		h := &entity.TaskHistory{ID: *in.HistoryID, TaskID: id, FromState: t.Status, ToState: in.Status, Message: in.HistoryData}
		if err := s.History.Update(ctx, h); err != nil {
			return fail[*entity.Task](fmt.Sprintf("history entry %d does not belong to task %d: %v", *in.HistoryID, id, err))
		}
	}

	if err := s.Tasks.UpdateStatus(ctx, id, in.Status); err != nil {
		return fail[*entity.Task](fmt.Sprintf("update status failed: %v", err))
	}
	if in.ScrapePhase != "" {
		if err := s.Tasks.UpdateProgress(ctx, id, in.ScrapePhase, t.ProgressPct); err != nil {
			return fail[*entity.Task](fmt.Sprintf("update phase failed: %v", err))
		}
		t.ScrapePhase = in.ScrapePhase
	}
	if in.HistoryID == nil {
		_ = s.History.Append(ctx, &entity.TaskHistory{TaskID: id, FromState: t.Status, ToState: in.Status, Message: in.HistoryData})
	}

	t.Status = in.Status
	return ok(t, "task status updated")
}

// TaskStatusView is the read-only status projection GetTaskStatus returns.
type TaskStatusView struct {
	TaskID      int64              `json:"task_id"`
	TaskStatus  entity.TaskStatus  `json:"task_status"`
	ScrapePhase entity.ScrapePhase `json:"scrape_phase"`
	ProgressPct int                `json:"progress_pct"`
	Message     string             `json:"message"`
}

// GetTaskStatus returns a task's current lifecycle status without the
// full Task payload.
func (s *Service) GetTaskStatus(ctx context.Context, id int64) Result[TaskStatusView] {
	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return fail[TaskStatusView](err.Error())
	}
	return ok(TaskStatusView{
		TaskID:      t.ID,
		TaskStatus:  t.Status,
		ScrapePhase: t.ScrapePhase,
		ProgressPct: t.ProgressPct,
		Message:     t.ResultMessage,
	}, "ok")
}

// FindTaskHistory returns a task's history rows, oldest first, paginated
// by limit/offset (zero limit defaults to the repository's page size).
func (s *Service) FindTaskHistory(ctx context.Context, taskID int64, limit, offset int) Result[[]*entity.TaskHistory] {
	hs, err := s.History.ListForTask(ctx, taskID, limit, offset)
	if err != nil {
		return fail[[]*entity.TaskHistory](err.Error())
	}
	return ok(hs, "ok")
}

// ResetRetryCount zeroes a task's retry counter. Idempotent: resetting an
// already-zero counter succeeds and reports the same result.
func (s *Service) ResetRetryCount(ctx context.Context, id int64) Result[*entity.Task] {
	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}
	if err := s.Tasks.ResetRetryCount(ctx, id); err != nil {
		return fail[*entity.Task](fmt.Sprintf("reset retry count failed: %v", err))
	}
	t.RetryCount = 0
	return ok(t, "retry count reset")
}

// UpdateMaxRetries replaces a task's max_retries ceiling, rejecting
// negative values.
func (s *Service) UpdateMaxRetries(ctx context.Context, id int64, maxRetries int) Result[*entity.Task] {
	if maxRetries < 0 {
		return fail[*entity.Task]("max_retries cannot be negative")
	}
	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return fail[*entity.Task](err.Error())
	}
	if err := s.Tasks.UpdateMaxRetries(ctx, id, maxRetries); err != nil {
		return fail[*entity.Task](fmt.Sprintf("update max_retries failed: %v", err))
	}
	t.MaxRetries = maxRetries
	return ok(t, "max_retries updated")
}

// ValidateTaskData runs the task_args validation CreateTask applies
// internally, exposed as its own facade operation so a caller can dry-run
// validation (e.g. from an admin UI form) without creating a task.
func (s *Service) ValidateTaskData(data map[string]any) Result[map[string]any] {
	if err := validation.ValidateTaskArgs(data); err != nil {
		return fail[map[string]any](err.Error())
	}
	return ok(data, "valid")
}

// FindTasksAdvanced returns a paginated, filtered view of tasks.
func (s *Service) FindTasksAdvanced(ctx context.Context, filters repository.TaskFindFilters, page, pageSize int) Result[repository.TaskPage] {
	tp, err := s.Tasks.FindAdvanced(ctx, filters, page, pageSize)
	if err != nil {
		return fail[repository.TaskPage](err.Error())
	}
	return ok(tp, "ok")
}

// GetArticle fetches a single saved article by ID.
func (s *Service) GetArticle(ctx context.Context, id int64) Result[*entity.Article] {
	if id <= 0 {
		return fail[*entity.Article]("invalid article id")
	}
	a, err := s.Articles.Get(ctx, id)
	if err != nil {
		return fail[*entity.Article](fmt.Sprintf("get article failed: %v", err))
	}
	if a == nil {
		return fail[*entity.Article]("article not found")
	}
	return ok(a, "ok")
}

// FindArticlesAdvanced returns a paginated, filtered view of saved
// articles, mirroring FindTasksAdvanced's shape for the read side of
// the facade.
func (s *Service) FindArticlesAdvanced(ctx context.Context, filters repository.ArticleFindFilters, page, pageSize int) Result[repository.ArticlePage] {
	ap, err := s.Articles.FindAdvanced(ctx, filters, page, pageSize)
	if err != nil {
		return fail[repository.ArticlePage](err.Error())
	}
	return ok(ap, "ok")
}

// SearchArticles performs multi-keyword AND-logic search over saved
// articles, optionally narrowed by filters.
func (s *Service) SearchArticles(ctx context.Context, keywords []string, filters repository.ArticleFindFilters) Result[[]*entity.Article] {
	if len(keywords) == 0 {
		return fail[[]*entity.Article]("at least one keyword is required")
	}
	articles, err := s.Articles.FindByKeywords(ctx, keywords, filters)
	if err != nil {
		return fail[[]*entity.Article](fmt.Sprintf("search articles failed: %v", err))
	}
	return ok(articles, "ok")
}

// DispatchDue implements scheduler.Dispatcher: it creates and runs a
// new task for crawlerID using that crawler's stored task_args
// defaults, called by the cron Poller for every due crawler.
func (s *Service) DispatchDue(ctx context.Context, crawlerID int64, triggerTime time.Time) error {
	crawler, err := s.Crawlers.Get(ctx, crawlerID)
	if err != nil {
		return fmt.Errorf("DispatchDue: %w", err)
	}
	if crawler == nil {
		return fmt.Errorf("DispatchDue: %w", entity.ErrNotFound)
	}

	mode := entity.ScrapeModeFullScrape
	if m, ok := crawler.TaskArgsDefaults["scrape_mode"].(string); ok {
		mode = entity.ScrapeMode(m)
	}

	created := s.CreateTask(ctx, CreateInput{CrawlerID: crawlerID, ScrapeMode: mode})
	if !created.Success {
		return fmt.Errorf("DispatchDue: create task: %s", created.Message)
	}

	if err := s.Crawlers.TouchLastRunAt(ctx, crawlerID, triggerTime); err != nil {
		return fmt.Errorf("DispatchDue: touch last_run_at: %w", err)
	}

	go func() {
		runCtx := context.WithoutCancel(ctx)
		s.RunTask(runCtx, created.Payload.ID)
	}()
	return nil
}
