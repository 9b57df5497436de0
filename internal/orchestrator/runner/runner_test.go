package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/orchestrator/progress"
	"crawlorch/internal/repository"
)

// fakeArticleRepo is an in-memory stand-in for the Article Store Gateway,
// keyed by link, enough to exercise the runner's save phases and
// content-only DB link acquisition.
type fakeArticleRepo struct {
	mu       sync.Mutex
	byLink   map[string]*entity.Article
	upserted [][]*entity.Article
	created  [][]*entity.Article
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{byLink: make(map[string]*entity.Article)}
}

func (f *fakeArticleRepo) Upsert(ctx context.Context, a *entity.Article) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byLink[a.Link] = a
	return 1, nil
}

func (f *fakeArticleRepo) BatchUpsert(ctx context.Context, articles []*entity.Article) (repository.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, articles)
	for _, a := range articles {
		f.byLink[a.Link] = a
	}
	return repository.BatchResult{Succeeded: len(articles), Failed: map[string]error{}}, nil
}

func (f *fakeArticleRepo) BatchCreate(ctx context.Context, articles []*entity.Article) (repository.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, articles)
	for _, a := range articles {
		f.byLink[a.Link] = a
	}
	return repository.BatchResult{Succeeded: len(articles), Failed: map[string]error{}}, nil
}

func (f *fakeArticleRepo) ExistsByLink(ctx context.Context, links []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(links))
	for _, l := range links {
		_, ok := f.byLink[l]
		out[l] = ok
	}
	return out, nil
}

func (f *fakeArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	return nil, nil
}

func (f *fakeArticleRepo) GetByLink(ctx context.Context, link string) (*entity.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byLink[link], nil
}

func (f *fakeArticleRepo) FindAdvanced(ctx context.Context, filters repository.ArticleFindFilters, page, pageSize int) (repository.ArticlePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*entity.Article
	for _, a := range f.byLink {
		if filters.TaskID != nil && a.TaskID != *filters.TaskID {
			continue
		}
		if filters.IsScraped != nil && a.IsScraped != *filters.IsScraped {
			continue
		}
		items = append(items, a)
	}
	return repository.ArticlePage{Items: items, Total: int64(len(items)), Page: page, PageSize: pageSize}, nil
}

func (f *fakeArticleRepo) FindByKeywords(ctx context.Context, keywords []string, filters repository.ArticleFindFilters) ([]*entity.Article, error) {
	return nil, nil
}

func (f *fakeArticleRepo) Delete(ctx context.Context, id int64) error { return nil }

// fakeSiteFetcher lets each test script FetchLinks/FetchContent behavior.
type fakeSiteFetcher struct {
	mu             sync.Mutex
	fetchLinksFn   func(ctx context.Context, crawlerID int64, listURLTemplate string, maxPages int) ([]LinkItem, error)
	fetchContentFn func(ctx context.Context, link string) (ContentResult, error)
	linkCalls      int
	contentCalls   int
}

func (f *fakeSiteFetcher) FetchLinks(ctx context.Context, crawlerID int64, listURLTemplate string, maxPages int) ([]LinkItem, error) {
	f.mu.Lock()
	f.linkCalls++
	f.mu.Unlock()
	return f.fetchLinksFn(ctx, crawlerID, listURLTemplate, maxPages)
}

func (f *fakeSiteFetcher) FetchContent(ctx context.Context, link string) (ContentResult, error) {
	f.mu.Lock()
	f.contentCalls++
	f.mu.Unlock()
	return f.fetchContentFn(ctx, link)
}

func newTestRunner(articles *fakeArticleRepo, fetcher *fakeSiteFetcher) *Runner {
	return New(articles, progress.New(), fetcher, func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	})
}

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// TestExecute_EmptyLinkCollection_EndsCleanly mirrors the seed suite's
// boundary scenario 1: mode=FULL_SCRAPE, fetch_links returns [].
func TestExecute_EmptyLinkCollection_EndsCleanly(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()
	fetcher := &fakeSiteFetcher{
		fetchLinksFn: func(ctx context.Context, crawlerID int64, tmpl string, maxPages int) ([]LinkItem, error) {
			return nil, nil
		},
	}
	r := newTestRunner(articles, fetcher)

	task := &entity.Task{ID: 1, CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape, TaskArgs: map[string]any{}}
	result := r.Execute(context.Background(), task)

	if result.Success {
		t.Error("Success should be false for an empty link collection")
	}
	if result.Status != entity.TaskStatusCompleted {
		t.Errorf("Status = %v, want COMPLETED", result.Status)
	}
	if result.Message == "" {
		t.Error("expected a non-empty explanatory message")
	}
}

// TestExecute_RetryThenSucceed mirrors boundary scenario 2: max_retries=2,
// fetcher fails once then returns links; run should still succeed.
func TestExecute_RetryThenSucceed(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()
	attempts := 0
	fetcher := &fakeSiteFetcher{
		fetchLinksFn: func(ctx context.Context, crawlerID int64, tmpl string, maxPages int) ([]LinkItem, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("transient network error")
			}
			return []LinkItem{{Link: "https://example.com/a"}, {Link: "https://example.com/b"}}, nil
		},
		fetchContentFn: func(ctx context.Context, link string) (ContentResult, error) {
			return ContentResult{Link: link, Title: "t", Content: "c"}, nil
		},
	}
	r := newTestRunner(articles, fetcher)

	task := &entity.Task{
		ID: 2, CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape,
		TaskArgs: map[string]any{
			"max_retries":      2,
			"retry_delay":      0.001,
			"save_to_database": true,
		},
	}
	result := r.Execute(context.Background(), task)

	if !result.Success {
		t.Fatalf("Success = false, message=%q", result.Message)
	}
	if attempts != 2 {
		t.Errorf("fetchLinks attempts = %d, want 2", attempts)
	}
	if len(articles.byLink) != 2 {
		t.Errorf("persisted articles = %d, want 2", len(articles.byLink))
	}
	if len(articles.created) != 1 {
		t.Errorf("FULL_SCRAPE with get_links_by_task_id unset should insert-only via BatchCreate, created calls = %d, want 1", len(articles.created))
	}
	if len(articles.upserted) != 0 {
		t.Errorf("FULL_SCRAPE with get_links_by_task_id unset should not call BatchUpsert, upserted calls = %d, want 0", len(articles.upserted))
	}
}

// TestExecute_CancelMidFetch_PartialSave mirrors boundary scenario 3: 6
// links collected, cancel flag set before content scraping, partial save
// enabled with CSV output.
func TestExecute_CancelMidFetch_PartialSave(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()

	var links []LinkItem
	for i := 0; i < 6; i++ {
		links = append(links, LinkItem{Link: "https://example.com/" + string(rune('a'+i))})
	}

	var runnerRef *Runner
	fetcher := &fakeSiteFetcher{
		fetchLinksFn: func(ctx context.Context, crawlerID int64, tmpl string, maxPages int) ([]LinkItem, error) {
			// Cancel takes effect once link collection finishes and
			// before content scraping starts, so every content-fetch
			// goroutine observes the cancellation on its pre-attempt
			// check deterministically rather than racing with it.
			runnerRef.Cancel(3)
			return links, nil
		},
		fetchContentFn: func(ctx context.Context, link string) (ContentResult, error) {
			return ContentResult{}, errors.New("should not be reached after cancel")
		},
	}
	runnerRef = newTestRunner(articles, fetcher)

	task := &entity.Task{
		ID: 3, CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape,
		TaskArgs: map[string]any{
			"save_partial_results_on_cancel": true,
			"save_to_csv":                    true,
			"max_retries":                    1,
			"retry_delay":                    0.001,
		},
	}
	result := runnerRef.Execute(context.Background(), task)

	if result.Success {
		t.Error("Success should be false on cancel")
	}
	if result.Status != entity.TaskStatusCancelled {
		t.Errorf("Status = %v, want CANCELLED", result.Status)
	}
	if !result.PartialSaved {
		t.Error("PartialSaved should be true: 6 rows >= partialSaveMinRows and save_partial_results_on_cancel set")
	}

	matches, _ := filepath.Glob("./logs/articles_cancelled_3_*.csv")
	if len(matches) != 1 {
		t.Errorf("expected one cancelled CSV file, found %v", matches)
	}
}

// TestExecute_ContentOnly_FromDBLinks mirrors boundary scenario 4:
// mode=CONTENT_ONLY, get_links_by_task_id=true, two unscraped rows
// bound to the task; after the run both should be CONTENT_SCRAPED and
// is_scraped=true, persisted via upsert.
func TestExecute_ContentOnly_FromDBLinks(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()
	articles.byLink["https://example.com/1"] = &entity.Article{
		Link: "https://example.com/1", TaskID: 4, IsScraped: false, ScrapeStatus: entity.ArticleScrapeStatusLinkSaved,
	}
	articles.byLink["https://example.com/2"] = &entity.Article{
		Link: "https://example.com/2", TaskID: 4, IsScraped: false, ScrapeStatus: entity.ArticleScrapeStatusLinkSaved,
	}

	fetcher := &fakeSiteFetcher{
		fetchContentFn: func(ctx context.Context, link string) (ContentResult, error) {
			return ContentResult{Link: link, Title: "t", Content: "body"}, nil
		},
	}
	r := newTestRunner(articles, fetcher)

	task := &entity.Task{
		ID: 4, CrawlerID: 1, ScrapeMode: entity.ScrapeModeContentOnly,
		TaskArgs: map[string]any{
			"get_links_by_task_id": true,
			"save_to_database":     true,
		},
	}
	result := r.Execute(context.Background(), task)

	if !result.Success {
		t.Fatalf("Success = false, message=%q", result.Message)
	}

	for _, link := range []string{"https://example.com/1", "https://example.com/2"} {
		a := articles.byLink[link]
		if a == nil {
			t.Fatalf("article %s missing after run", link)
		}
		if !a.IsScraped {
			t.Errorf("article %s: IsScraped = false, want true", link)
		}
		if a.ScrapeStatus != entity.ArticleScrapeStatusContentSaved {
			t.Errorf("article %s: ScrapeStatus = %v, want CONTENT_SCRAPED", link, a.ScrapeStatus)
		}
	}
	if len(articles.upserted) != 1 {
		t.Errorf("get_links_by_task_id=true should merge via BatchUpsert, upserted calls = %d, want 1", len(articles.upserted))
	}
	if len(articles.created) != 0 {
		t.Errorf("get_links_by_task_id=true should not call BatchCreate, created calls = %d, want 0", len(articles.created))
	}
}

func TestExecute_ContentOnly_EmptyAcquisition_Completes(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()
	fetcher := &fakeSiteFetcher{}
	r := newTestRunner(articles, fetcher)

	task := &entity.Task{
		ID: 5, CrawlerID: 1, ScrapeMode: entity.ScrapeModeContentOnly,
		TaskArgs: map[string]any{"get_links_by_task_id": true},
	}
	result := r.Execute(context.Background(), task)

	if result.Success {
		t.Error("Success should be false when there is nothing to scrape")
	}
	if result.Status != entity.TaskStatusCompleted {
		t.Errorf("Status = %v, want COMPLETED", result.Status)
	}
}

func TestCancel_IdempotentOnUnknownOrAlreadyCancelledTask(t *testing.T) {
	r := newTestRunner(newFakeArticleRepo(), &fakeSiteFetcher{})

	if r.Cancel(999) {
		t.Error("Cancel on an unknown task should return false")
	}
}

func TestExecute_LinksOnly_NoSaves(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()
	fetcher := &fakeSiteFetcher{
		fetchLinksFn: func(ctx context.Context, crawlerID int64, tmpl string, maxPages int) ([]LinkItem, error) {
			return []LinkItem{{Link: "https://example.com/a"}}, nil
		},
	}
	r := newTestRunner(articles, fetcher)

	task := &entity.Task{ID: 6, CrawlerID: 1, ScrapeMode: entity.ScrapeModeLinksOnly, TaskArgs: map[string]any{}}
	result := r.Execute(context.Background(), task)

	if !result.Success {
		t.Fatalf("Success = false, message=%q", result.Message)
	}
	if len(articles.byLink) != 0 {
		t.Errorf("no save flags were set; expected nothing persisted, got %d", len(articles.byLink))
	}
}

func TestExecute_GenericFailure_TransitionsToFailed(t *testing.T) {
	chdirTemp(t)
	articles := newFakeArticleRepo()
	fetcher := &fakeSiteFetcher{
		fetchLinksFn: func(ctx context.Context, crawlerID int64, tmpl string, maxPages int) ([]LinkItem, error) {
			return nil, errors.New("permanent failure")
		},
	}
	r := newTestRunner(articles, fetcher)

	task := &entity.Task{
		ID: 7, CrawlerID: 1, ScrapeMode: entity.ScrapeModeFullScrape,
		TaskArgs: map[string]any{"max_retries": 1, "retry_delay": 0.001},
	}
	result := r.Execute(context.Background(), task)

	if result.Success {
		t.Error("Success should be false")
	}
	if result.Status != entity.TaskStatusFailed {
		t.Errorf("Status = %v, want FAILED", result.Status)
	}
}
