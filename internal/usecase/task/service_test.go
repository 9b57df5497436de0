package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/orchestrator/progress"
	"crawlorch/internal/orchestrator/runner"
	"crawlorch/internal/repository"
)

type fakeCrawlerRepo struct {
	mu       sync.Mutex
	byID     map[int64]*entity.Crawler
	touched  map[int64]time.Time
}

func newFakeCrawlerRepo(crawlers ...*entity.Crawler) *fakeCrawlerRepo {
	f := &fakeCrawlerRepo{byID: make(map[int64]*entity.Crawler), touched: make(map[int64]time.Time)}
	for _, c := range crawlers {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCrawlerRepo) Get(ctx context.Context, id int64) (*entity.Crawler, error) {
	return f.byID[id], nil
}
func (f *fakeCrawlerRepo) List(ctx context.Context) ([]*entity.Crawler, error) { return nil, nil }
func (f *fakeCrawlerRepo) ListActive(ctx context.Context) ([]*entity.Crawler, error) { return nil, nil }
func (f *fakeCrawlerRepo) Create(ctx context.Context, c *entity.Crawler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[c.ID] = c
	return nil
}
func (f *fakeCrawlerRepo) Update(ctx context.Context, c *entity.Crawler) error { return nil }
func (f *fakeCrawlerRepo) Delete(ctx context.Context, id int64) error          { return nil }
func (f *fakeCrawlerRepo) TouchLastRunAt(ctx context.Context, id int64, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = t
	return nil
}

type fakeTaskRepo struct {
	mu       sync.Mutex
	byID     map[int64]*entity.Task
	nextID   int64
	statuses []entity.TaskStatus
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{byID: make(map[int64]*entity.Task)}
}

func (f *fakeTaskRepo) Create(ctx context.Context, t *entity.Task) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *t
	cp.ID = f.nextID
	f.byID[cp.ID] = &cp
	return cp.ID, nil
}
func (f *fakeTaskRepo) Get(ctx context.Context, id int64) (*entity.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *t
	return &cp, nil
}
func (f *fakeTaskRepo) Update(ctx context.Context, id int64, scrapeMode entity.ScrapeMode, taskArgs map[string]any, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return entity.ErrNotFound
	}
	t.ScrapeMode = scrapeMode
	t.TaskArgs = taskArgs
	t.MaxRetries = maxRetries
	return nil
}
func (f *fakeTaskRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return entity.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
func (f *fakeTaskRepo) ResetRetryCount(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return entity.ErrNotFound
	}
	t.RetryCount = 0
	return nil
}
func (f *fakeTaskRepo) UpdateMaxRetries(ctx context.Context, id int64, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return entity.ErrNotFound
	}
	t.MaxRetries = maxRetries
	return nil
}
func (f *fakeTaskRepo) UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if t, ok := f.byID[id]; ok {
		t.Status = status
	}
	return nil
}
func (f *fakeTaskRepo) UpdateProgress(ctx context.Context, id int64, phase entity.ScrapePhase, pct int) error {
	return nil
}
func (f *fakeTaskRepo) IncrementRetryCount(ctx context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return 0, entity.ErrNotFound
	}
	t.RetryCount++
	return t.RetryCount, nil
}
func (f *fakeTaskRepo) Complete(ctx context.Context, id int64, status entity.TaskStatus, success bool, message string, partialSaved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return entity.ErrNotFound
	}
	t.Status = status
	t.ResultSuccess = success
	t.ResultMessage = message
	t.PartialSaved = partialSaved
	return nil
}
func (f *fakeTaskRepo) FindAdvanced(ctx context.Context, filters repository.TaskFindFilters, page, pageSize int) (repository.TaskPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*entity.Task
	for _, t := range f.byID {
		if filters.CrawlerID != nil && t.CrawlerID != *filters.CrawlerID {
			continue
		}
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		items = append(items, t)
	}
	return repository.TaskPage{Items: items, Total: int64(len(items)), Page: page, PageSize: pageSize}, nil
}
func (f *fakeTaskRepo) FindFailedSince(ctx context.Context, since time.Time) ([]int64, error) {
	return nil, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.TaskHistory
	nextID  int64
}

func newFakeHistoryRepo() *fakeHistoryRepo { return &fakeHistoryRepo{} }

func (f *fakeHistoryRepo) Append(ctx context.Context, h *entity.TaskHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h.ID = f.nextID
	f.entries = append(f.entries, h)
	return nil
}
func (f *fakeHistoryRepo) Update(ctx context.Context, h *entity.TaskHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.entries {
		if existing.ID == h.ID {
			if existing.TaskID != h.TaskID {
				return entity.ErrNotFound
			}
			existing.ToState = h.ToState
			existing.Message = h.Message
			return nil
		}
	}
	return entity.ErrNotFound
}
func (f *fakeHistoryRepo) ListForTask(ctx context.Context, taskID int64, limit, offset int) ([]*entity.TaskHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.TaskHistory
	for _, h := range f.entries {
		if h.TaskID == taskID {
			out = append(out, h)
		}
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fakeArticleRepo struct{}

func (fakeArticleRepo) Upsert(ctx context.Context, a *entity.Article) (int64, error) { return 1, nil }
func (fakeArticleRepo) BatchUpsert(ctx context.Context, articles []*entity.Article) (repository.BatchResult, error) {
	return repository.BatchResult{Succeeded: len(articles), Failed: map[string]error{}}, nil
}
func (fakeArticleRepo) BatchCreate(ctx context.Context, articles []*entity.Article) (repository.BatchResult, error) {
	return repository.BatchResult{Succeeded: len(articles), Failed: map[string]error{}}, nil
}
func (fakeArticleRepo) ExistsByLink(ctx context.Context, links []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
func (fakeArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	if id <= 0 {
		return nil, nil
	}
	return &entity.Article{ID: id, Link: "https://example.com/1"}, nil
}
func (fakeArticleRepo) GetByLink(ctx context.Context, link string) (*entity.Article, error) {
	return nil, nil
}
func (fakeArticleRepo) FindAdvanced(ctx context.Context, filters repository.ArticleFindFilters, page, pageSize int) (repository.ArticlePage, error) {
	return repository.ArticlePage{Page: page, PageSize: pageSize}, nil
}
func (fakeArticleRepo) FindByKeywords(ctx context.Context, keywords []string, filters repository.ArticleFindFilters) ([]*entity.Article, error) {
	return []*entity.Article{{ID: 1, Link: "https://example.com/1"}}, nil
}
func (fakeArticleRepo) Delete(ctx context.Context, id int64) error { return nil }

type fakeSiteFetcher struct{}

func (fakeSiteFetcher) FetchLinks(ctx context.Context, crawlerID int64, listURLTemplate string, maxPages int) ([]runner.LinkItem, error) {
	return nil, nil
}
func (fakeSiteFetcher) FetchContent(ctx context.Context, link string) (runner.ContentResult, error) {
	return runner.ContentResult{}, nil
}

func newTestService() (*Service, *fakeCrawlerRepo, *fakeTaskRepo, *fakeHistoryRepo) {
	crawlers := newFakeCrawlerRepo(&entity.Crawler{ID: 1, Name: "example", Active: true, BaseURL: "https://example.com"})
	tasks := newFakeTaskRepo()
	history := newFakeHistoryRepo()
	r := runner.New(fakeArticleRepo{}, progress.New(), fakeSiteFetcher{}, func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	svc := New(crawlers, tasks, history, fakeArticleRepo{}, r)
	return svc, crawlers, tasks, history
}

func TestCreateTask_Success(t *testing.T) {
	svc, _, _, history := newTestService()
	res := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape})
	if !res.Success {
		t.Fatalf("Success = false, message=%q", res.Message)
	}
	if res.Payload.Status != entity.TaskStatusInit {
		t.Errorf("Status = %v, want INIT", res.Payload.Status)
	}
	if len(history.entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(history.entries))
	}
}

func TestCreateTask_UnknownCrawler(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 999, ScrapeMode: entity.ScrapeModeFullScrape})
	if res.Success {
		t.Fatal("Success should be false for an unknown crawler")
	}
}

func TestCreateTask_InvalidScrapeMode(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: "not_a_mode"})
	if res.Success {
		t.Fatal("Success should be false for an invalid scrape_mode")
	}
}

func TestCreateTask_InvalidTaskArgsRejected(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.CreateTask(context.Background(), CreateInput{
		CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape,
		TaskArgs: map[string]any{"unrecognized_key": true},
	})
	if res.Success {
		t.Fatal("Success should be false for an unrecognized task_args key")
	}
}

func TestRunTask_TransitionsAndPersistsResult(t *testing.T) {
	svc, _, tasks, history := newTestService()
	created := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeLinksOnly})
	if !created.Success {
		t.Fatalf("create failed: %s", created.Message)
	}

	res := svc.RunTask(context.Background(), created.Payload.ID)
	if !res.Success {
		t.Fatalf("RunTask Success=false message=%q", res.Message)
	}

	stored, _ := tasks.Get(context.Background(), created.Payload.ID)
	if !stored.Status.Terminal() {
		t.Errorf("stored task status %v is not terminal", stored.Status)
	}
	if len(history.entries) < 2 {
		t.Errorf("expected at least 2 history entries (create+transition+complete), got %d", len(history.entries))
	}
}

func TestRunTask_AlreadyTerminalRejected(t *testing.T) {
	svc, _, tasks, _ := newTestService()
	created := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeLinksOnly})
	_ = tasks.Complete(context.Background(), created.Payload.ID, entity.TaskStatusCompleted, true, "done", false)

	res := svc.RunTask(context.Background(), created.Payload.ID)
	if res.Success {
		t.Fatal("RunTask should refuse to re-run a terminal task")
	}
}

func TestCancelTask_NotRunning(t *testing.T) {
	svc, _, _, _ := newTestService()
	created := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape})

	res := svc.CancelTask(context.Background(), created.Payload.ID)
	if res.Success {
		t.Fatal("CancelTask should fail for a task that isn't currently running")
	}
}

func TestCancelTask_TerminalTaskRejected(t *testing.T) {
	svc, _, tasks, _ := newTestService()
	created := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape})
	_ = tasks.Complete(context.Background(), created.Payload.ID, entity.TaskStatusFailed, false, "boom", false)

	res := svc.CancelTask(context.Background(), created.Payload.ID)
	if res.Success {
		t.Fatal("CancelTask should refuse a terminal task")
	}
}

func TestRetryTask_OnlyFailedTasksRetried(t *testing.T) {
	svc, _, tasks, _ := newTestService()
	created := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape})

	res := svc.RetryTask(context.Background(), created.Payload.ID)
	if res.Success {
		t.Fatal("RetryTask should refuse a non-failed task")
	}

	_ = tasks.Complete(context.Background(), created.Payload.ID, entity.TaskStatusFailed, false, "boom", false)
	res = svc.RetryTask(context.Background(), created.Payload.ID)
	if !res.Success {
		t.Fatalf("RetryTask should succeed for a failed task, message=%q", res.Message)
	}
	if res.Payload.Status != entity.TaskStatusInit {
		t.Errorf("Status = %v, want INIT after retry", res.Payload.Status)
	}
	if res.Payload.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", res.Payload.RetryCount)
	}
}

func TestRetryTask_ExhaustedRejected(t *testing.T) {
	svc, _, tasks, _ := newTestService()
	created := svc.CreateTask(context.Background(), CreateInput{CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape})
	_ = tasks.Complete(context.Background(), created.Payload.ID, entity.TaskStatusFailed, false, "boom", false)

	tasks.mu.Lock()
	tasks.byID[created.Payload.ID].RetryCount = tasks.byID[created.Payload.ID].MaxRetries
	tasks.mu.Unlock()

	res := svc.RetryTask(context.Background(), created.Payload.ID)
	if res.Success {
		t.Fatal("RetryTask should refuse once RetryCount reaches MaxRetries")
	}
}

func TestGetArticle_InvalidID(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.GetArticle(context.Background(), 0)
	if res.Success {
		t.Fatal("GetArticle should reject a non-positive id")
	}
}

func TestGetArticle_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.GetArticle(context.Background(), -1)
	if res.Success {
		t.Fatal("GetArticle should fail when the repo returns nil")
	}
}

func TestSearchArticles_RequiresKeywords(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.SearchArticles(context.Background(), nil, repository.ArticleFindFilters{})
	if res.Success {
		t.Fatal("SearchArticles should require at least one keyword")
	}
}

func TestSearchArticles_Success(t *testing.T) {
	svc, _, _, _ := newTestService()
	res := svc.SearchArticles(context.Background(), []string{"go"}, repository.ArticleFindFilters{})
	if !res.Success {
		t.Fatalf("SearchArticles Success=false message=%q", res.Message)
	}
	if len(res.Payload) != 1 {
		t.Errorf("Payload len = %d, want 1", len(res.Payload))
	}
}

func TestDispatchDue_CreatesAndRunsTaskAndTouchesLastRun(t *testing.T) {
	svc, crawlers, _, _ := newTestService()
	trigger := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	if err := svc.DispatchDue(context.Background(), 1, trigger); err != nil {
		t.Fatalf("DispatchDue err=%v", err)
	}

	crawlers.mu.Lock()
	touched, ok := crawlers.touched[1]
	crawlers.mu.Unlock()
	if !ok || !touched.Equal(trigger) {
		t.Errorf("TouchLastRunAt not recorded with trigger time, got %v", touched)
	}
}

func TestDispatchDue_UnknownCrawler(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.DispatchDue(context.Background(), 999, time.Now())
	if err == nil {
		t.Fatal("expected an error for an unknown crawler")
	}
}
