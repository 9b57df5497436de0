// Package runner implements the Task Runner: the state machine that
// drives a single crawl task from INIT through its terminal state,
// coordinating link collection, content scraping, progress broadcast,
// retry and cancellation.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/observability/metrics"
	"crawlorch/internal/orchestrator/progress"
	"crawlorch/internal/orchestrator/retrycoord"
	"crawlorch/internal/repository"

	"golang.org/x/sync/errgroup"
)

// partialSaveMinRows is the minimum row count the working table must
// reach before a cancel is allowed to trigger a partial save.
const partialSaveMinRows = 5

const contentFetchParallelism = 5

// Clock returns the current time; overridable in tests.
type Clock func() time.Time

// Runner drives task execution. One Runner instance is shared across
// concurrently running tasks; per-task state lives in runState.
type Runner struct {
	Articles    repository.ArticleRepository
	Broadcaster *progress.Broadcaster
	Fetcher     SiteFetcher
	Now         Clock

	mu    sync.Mutex
	tasks map[int64]*runState
}

type runState struct {
	mu        sync.Mutex
	cancelled bool
	cancel    context.CancelFunc
	table     *articleTable
}

// New constructs a Runner. now may be nil, in which case time.Now is used.
func New(articles repository.ArticleRepository, broadcaster *progress.Broadcaster, fetcher SiteFetcher, now Clock) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		Articles:    articles,
		Broadcaster: broadcaster,
		Fetcher:     fetcher,
		Now:         now,
		tasks:       make(map[int64]*runState),
	}
}

// IsCancelled implements retrycoord.CancelChecker.
func (r *Runner) IsCancelled(taskID int64) bool {
	r.mu.Lock()
	st, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cancelled
}

// Cancel requests cancellation of taskID. Idempotent: returns false if
// the task is unknown or already cancelled, matching the original
// crawler's cancel_task contract.
func (r *Runner) Cancel(taskID int64) bool {
	r.mu.Lock()
	st, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cancelled {
		return false
	}
	st.cancelled = true
	if st.cancel != nil {
		st.cancel()
	}
	return true
}

// ActiveTaskCount returns the number of tasks currently executing.
func (r *Runner) ActiveTaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Result is the outcome of a completed task run.
type Result struct {
	Status       entity.TaskStatus
	Success      bool
	Message      string
	PartialSaved bool
	CSVPath      string
}

// Execute runs task to completion, dispatching on its ScrapeMode and
// broadcasting progress through r.Broadcaster. It mirrors the original
// crawler's execute_task dispatcher: validate, check cancellation, run
// the mode-specific flow, and translate any error — including a
// cancellation raised mid-flow — into a terminal Result.
func (r *Runner) Execute(ctx context.Context, task *entity.Task) Result {
	runCtx, cancel := context.WithCancel(ctx)
	st := &runState{cancel: cancel, table: newArticleTable()}
	r.mu.Lock()
	r.tasks[task.ID] = st
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.tasks, task.ID)
		r.mu.Unlock()
		r.Broadcaster.ClearTask(task.ID)
		cancel()
	}()

	calc := progress.NewCalculator(progress.PhasesForMode(task.ScrapeMode))

	var result Result
	var err error
	switch task.ScrapeMode {
	case entity.ScrapeModeLinksOnly:
		result, err = r.runLinksOnly(runCtx, task, st, calc)
	case entity.ScrapeModeContentOnly:
		result, err = r.runContentOnly(runCtx, task, st, calc)
	default:
		result, err = r.runFullScrape(runCtx, task, st, calc)
	}

	if err != nil {
		if errors.Is(err, entity.ErrCancelled) {
			return r.finishCancelled(runCtx, task, st, calc)
		}
		slog.Error("task run failed",
			slog.Int64("task_id", task.ID),
			slog.Any("error", err))
		return Result{Status: entity.TaskStatusFailed, Success: false, Message: err.Error()}
	}
	return result
}

func (r *Runner) checkCancelled(taskID int64) error {
	if r.IsCancelled(taskID) {
		return entity.ErrCancelled
	}
	return nil
}

func (r *Runner) broadcast(task *entity.Task, phase entity.ScrapePhase, calc *progress.Calculator, message string) {
	r.Broadcaster.Broadcast(progress.Update{
		TaskID:  task.ID,
		Phase:   phase,
		Percent: calc.Overall(),
		Message: message,
	})
}

// runLinksOnly executes FETCH_LINKS then the save phases; there is no
// content phase. An empty link result is a terminal COMPLETED run with
// Success=false, matching the Python original's empty-result message
// path rather than treating "nothing found" as a failure.
func (r *Runner) runLinksOnly(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator) (Result, error) {
	if err := r.checkCancelled(task.ID); err != nil {
		return Result{}, err
	}

	links, err := r.fetchLinks(ctx, task, st, calc)
	if err != nil {
		return Result{}, err
	}
	if len(links) == 0 {
		return Result{Status: entity.TaskStatusCompleted, Success: false, Message: "no links found"}, nil
	}

	calc.CompletePhase(entity.ScrapePhaseUpdateDataframe)
	r.broadcast(task, entity.ScrapePhaseUpdateDataframe, calc, "links collected")

	return r.save(ctx, task, st, calc, false)
}

// runContentOnly scrapes content either for links belonging to a prior
// task (get_links_by_task_id) or for the explicit article_links list,
// then saves. An empty input set is a terminal COMPLETED run with
// Success=false.
func (r *Runner) runContentOnly(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator) (Result, error) {
	if err := r.checkCancelled(task.ID); err != nil {
		return Result{}, err
	}

	links, err := r.resolveContentOnlyLinks(ctx, task)
	if err != nil {
		return Result{}, err
	}
	if len(links) == 0 {
		return Result{Status: entity.TaskStatusCompleted, Success: false, Message: "no article links to scrape"}, nil
	}

	if err := r.fetchContents(ctx, task, st, calc, links); err != nil {
		return Result{}, err
	}

	calc.CompletePhase(entity.ScrapePhaseUpdateDataframe)
	r.broadcast(task, entity.ScrapePhaseUpdateDataframe, calc, "content merged")

	return r.save(ctx, task, st, calc, false)
}

func (r *Runner) resolveContentOnlyLinks(ctx context.Context, task *entity.Task) ([]string, error) {
	if wants, _ := task.TaskArgs["get_links_by_task_id"].(bool); wants {
		id := task.ID
		unscraped := false
		page, err := r.Articles.FindAdvanced(ctx, repository.ArticleFindFilters{TaskID: &id, IsScraped: &unscraped}, 1, 10000)
		if err != nil {
			return nil, fmt.Errorf("resolveContentOnlyLinks: %w", err)
		}
		links := make([]string, 0, len(page.Items))
		for _, a := range page.Items {
			links = append(links, a.Link)
		}
		return links, nil
	}

	raw, _ := task.TaskArgs["article_links"]
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		links := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				links = append(links, s)
			}
		}
		return links, nil
	}
	return nil, nil
}

// runFullScrape executes FETCH_LINKS then FETCH_CONTENTS for every
// discovered link, then the save phases.
func (r *Runner) runFullScrape(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator) (Result, error) {
	if err := r.checkCancelled(task.ID); err != nil {
		return Result{}, err
	}

	links, err := r.fetchLinks(ctx, task, st, calc)
	if err != nil {
		return Result{}, err
	}
	if len(links) == 0 {
		return Result{Status: entity.TaskStatusCompleted, Success: false, Message: "no links found"}, nil
	}

	linkStrs := make([]string, 0, len(links))
	for _, l := range links {
		linkStrs = append(linkStrs, l.Link)
	}
	if err := r.fetchContents(ctx, task, st, calc, linkStrs); err != nil {
		return Result{}, err
	}

	calc.CompletePhase(entity.ScrapePhaseUpdateDataframe)
	r.broadcast(task, entity.ScrapePhaseUpdateDataframe, calc, "content merged")

	return r.save(ctx, task, st, calc, false)
}

// fetchLinks runs the link-collection phase through the retry
// coordinator, populating st.table with link-only rows.
func (r *Runner) fetchLinks(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator) ([]LinkItem, error) {
	cfg := retrycoord.FromTaskArgs(task.TaskArgs)
	maxPages, _ := toInt64(task.TaskArgs["max_pages"])
	if maxPages == 0 {
		maxPages = 1
	}

	start := r.Now()
	var links []LinkItem
	err := retrycoord.Run(ctx, r, task.ID, cfg, func(ctx context.Context, attempt int) error {
		var err error
		links, err = r.Fetcher.FetchLinks(ctx, task.CrawlerID, "", int(maxPages))
		return err
	})
	if err != nil {
		if !errors.Is(err, entity.ErrCancelled) {
			metrics.RecordLinkCollectionError(task.CrawlerID, classifyError(err))
		}
		return nil, err
	}
	metrics.RecordLinkCollection(task.CrawlerID, r.Now().Sub(start), len(links))

	st.mu.Lock()
	for _, l := range links {
		st.table.Upsert(&entity.Article{
			CrawlerID:    task.CrawlerID,
			TaskID:       task.ID,
			Link:         l.Link,
			Title:        l.Title,
			PublishedAt:  l.PublishedAt,
			ScrapeStatus: entity.ArticleScrapeStatusLinkSaved,
		})
	}
	st.mu.Unlock()

	calc.CompletePhase(entity.ScrapePhaseFetchLinks)
	r.broadcast(task, entity.ScrapePhaseFetchLinks, calc, fmt.Sprintf("collected %d links", len(links)))
	return links, nil
}

// fetchContents scrapes every link concurrently, bounded by a
// semaphore, through the retry coordinator per link, merging results
// into st.table as they complete.
func (r *Runner) fetchContents(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator, links []string) error {
	cfg := retrycoord.FromTaskArgs(task.TaskArgs)
	sem := make(chan struct{}, contentFetchParallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	done := 0
	total := len(links)

	for _, link := range links {
		link := link
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchStart := r.Now()
			var result ContentResult
			err := retrycoord.Run(egCtx, r, task.ID, cfg, func(ctx context.Context, attempt int) error {
				var ferr error
				result, ferr = r.Fetcher.FetchContent(ctx, link)
				return ferr
			})

			st.mu.Lock()
			defer st.mu.Unlock()
			if err != nil {
				if errors.Is(err, entity.ErrCancelled) {
					return err
				}
				metrics.RecordContentFetchFailed(r.Now().Sub(fetchStart))
				st.table.Upsert(&entity.Article{
					Link:              link,
					ScrapeStatus:      entity.ArticleScrapeStatusFailed,
					ScrapeError:       err.Error(),
					LastScrapeAttempt: r.Now(),
				})
			} else {
				metrics.RecordContentFetchSuccess(r.Now().Sub(fetchStart), len(result.Content))
				st.table.Upsert(&entity.Article{
					CrawlerID:    task.CrawlerID,
					TaskID:       task.ID,
					Link:         result.Link,
					Title:        result.Title,
					Summary:      result.Summary,
					Content:      result.Content,
					Keywords:     result.Keywords,
					ScrapeStatus: entity.ArticleScrapeStatusContentSaved,
				})
			}

			mu.Lock()
			done++
			pct := done * 100 / max1(total)
			mu.Unlock()
			calc.SetPhaseProgress(entity.ScrapePhaseFetchContents, pct)
			r.broadcast(task, entity.ScrapePhaseFetchContents, calc, fmt.Sprintf("scraped %d/%d", done, total))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	calc.CompletePhase(entity.ScrapePhaseFetchContents)
	return nil
}

// save runs the CSV and database save phases according to task_args
// flags, returning the terminal Result. cancelled controls the CSV
// filename convention and whether only partial rows are persisted.
func (r *Runner) save(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator, cancelled bool) (Result, error) {
	st.mu.Lock()
	rows := st.table.Rows()
	st.mu.Unlock()

	result := Result{Status: entity.TaskStatusCompleted, Success: true, Message: "task completed"}

	if saveCSV, _ := task.TaskArgs["save_to_csv"].(bool); saveCSV {
		prefix := "articles"
		if p, ok := task.TaskArgs["csv_file_prefix"].(string); ok && p != "" {
			prefix = p
		}
		path, err := WriteCSV(prefix, task.ID, r.Now().UTC().Format("20060102T150405Z"), cancelled, rows)
		if err != nil {
			slog.Error("csv save failed", slog.Int64("task_id", task.ID), slog.Any("error", err))
		} else {
			result.CSVPath = path
		}
		calc.CompletePhase(entity.ScrapePhaseSaveToCSV)
		r.broadcast(task, entity.ScrapePhaseSaveToCSV, calc, "csv saved")
	}

	if saveDB, _ := task.TaskArgs["save_to_database"].(bool); saveDB {
		wantsLinksByTaskID, _ := task.TaskArgs["get_links_by_task_id"].(bool)
		var batch repository.BatchResult
		var err error
		if wantsLinksByTaskID || task.ScrapeMode == entity.ScrapeModeContentOnly {
			batch, err = r.Articles.BatchUpsert(ctx, rows)
		} else {
			batch, err = r.Articles.BatchCreate(ctx, rows)
		}
		if err != nil {
			return Result{}, fmt.Errorf("save: %w", err)
		}
		if len(batch.Failed) > 0 {
			slog.Warn("some rows failed to save",
				slog.Int64("task_id", task.ID),
				slog.Int("failed", len(batch.Failed)))
		}
		calc.CompletePhase(entity.ScrapePhaseSaveToDatabase)
		r.broadcast(task, entity.ScrapePhaseSaveToDatabase, calc, "database saved")
	}

	return result, nil
}

// finishCancelled implements the partial-save-on-cancel contract: if the
// working table has reached partialSaveMinRows and
// save_partial_results_on_cancel is set, every row is marked
// IsPartialSave and persisted according to save_to_csv /
// save_to_database && save_partial_to_database, producing a
// "_cancelled_" CSV. The final message notes whether partial data was
// saved, mirroring the original crawler's bilingual status text in
// spirit (message composition, not literal translation).
func (r *Runner) finishCancelled(ctx context.Context, task *entity.Task, st *runState, calc *progress.Calculator) Result {
	st.mu.Lock()
	rows := st.table.Rows()
	rowCount := len(rows)
	st.mu.Unlock()

	wantsPartial, _ := task.TaskArgs["save_partial_results_on_cancel"].(bool)
	partialSaved := false

	if rowCount >= partialSaveMinRows && wantsPartial {
		for _, row := range rows {
			row.IsPartialSave = true
			if row.ScrapeStatus == entity.ArticleScrapeStatusContentSaved {
				row.ScrapeStatus = entity.ArticleScrapeStatusPartialSaved
			}
			row.ReconcileScrapeStatus()
		}

		if saveCSV, _ := task.TaskArgs["save_to_csv"].(bool); saveCSV {
			prefix := "articles"
			if p, ok := task.TaskArgs["csv_file_prefix"].(string); ok && p != "" {
				prefix = p
			}
			if _, err := WriteCSV(prefix, task.ID, r.Now().UTC().Format("20060102T150405Z"), true, rows); err != nil {
				slog.Error("partial csv save failed", slog.Int64("task_id", task.ID), slog.Any("error", err))
			}
		}

		saveDB, _ := task.TaskArgs["save_to_database"].(bool)
		savePartialDB, _ := task.TaskArgs["save_partial_to_database"].(bool)
		if saveDB && savePartialDB {
			safeCtx := context.WithoutCancel(ctx)
			if _, err := r.Articles.BatchUpsert(safeCtx, rows); err != nil {
				slog.Error("partial db save failed", slog.Int64("task_id", task.ID), slog.Any("error", err))
			} else {
				partialSaved = true
			}
		} else if !saveDB {
			partialSaved = true // CSV-only partial save still counts as saved
		}
	}

	message := "task cancelled"
	if partialSaved {
		message = "task cancelled and partial data saved"
	}

	calc.SetPhaseProgress(entity.ScrapePhaseSaveToDatabase, calc.Overall())
	r.broadcast(task, entity.ScrapePhaseSaveToDatabase, calc, message)

	return Result{
		Status:       entity.TaskStatusCancelled,
		Success:      false,
		Message:      message,
		PartialSaved: partialSaved,
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// classifyError buckets a link-collection failure for the error_type
// metric label without leaking unbounded cardinality from raw error text.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "fetch_error"
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
