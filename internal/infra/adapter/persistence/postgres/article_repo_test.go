package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"crawlorch/internal/domain/entity"
	pg "crawlorch/internal/infra/adapter/persistence/postgres"
	"crawlorch/internal/repository"
)

func articleColumnsRow(a *entity.Article) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "crawler_id", "task_id", "link", "title", "summary", "content",
		"keywords", "published_at", "created_at", "updated_at", "scrape_status",
		"is_scraped", "is_ai_related", "is_partial_save", "scrape_error",
		"last_scrape_attempt", "source", "source_url", "category", "author",
		"article_type", "tags",
	}).AddRow(
		a.ID, a.CrawlerID, a.TaskID, a.Link, a.Title, a.Summary, a.Content,
		pqArray(a.Keywords), a.PublishedAt, a.CreatedAt, a.UpdatedAt, string(a.ScrapeStatus),
		a.IsScraped, a.IsAIRelated, a.IsPartialSave, a.ScrapeError,
		a.LastScrapeAttempt, a.Source, a.SourceURL, a.Category, a.Author,
		a.ArticleType, pqArray(a.Tags),
	)
}

func pqArray(s []string) interface{} {
	if s == nil {
		return "{}"
	}
	return s
}

func TestArticleRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2025, 7, 19, 0, 0, 0, 0, time.UTC)
	want := &entity.Article{
		ID: 1, CrawlerID: 2, TaskID: 3, Link: "https://example.com/a",
		Title: "Go 1.24 released", Summary: "sum", PublishedAt: now,
		CreatedAt: now, UpdatedAt: now, ScrapeStatus: entity.ArticleScrapeStatusContentSaved,
		IsScraped: true,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs(int64(1)).
		WillReturnRows(articleColumnsRow(want))

	repo := pg.NewArticleRepo(db)
	got, err := repo.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.Link != want.Link || got.IsScraped != want.IsScraped {
		t.Fatalf("got=%+v want=%+v", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "crawler_id", "task_id", "link", "title", "summary", "content",
			"keywords", "published_at", "created_at", "updated_at", "scrape_status",
			"is_scraped", "is_ai_related", "is_partial_save", "scrape_error",
			"last_scrape_attempt", "source", "source_url", "category", "author",
			"article_type", "tags",
		}))

	repo := pg.NewArticleRepo(db)
	got, err := repo.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get should not error for not found, err=%v", err)
	}
	if got != nil {
		t.Fatalf("Get should return nil for not found, got=%v", got)
	}
}

func TestArticleRepo_GetByLink(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	want := &entity.Article{ID: 5, Link: "https://example.com/x", PublishedAt: now, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs("https://example.com/x").
		WillReturnRows(articleColumnsRow(want))

	repo := pg.NewArticleRepo(db)
	got, err := repo.GetByLink(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("GetByLink err=%v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("got=%+v want=%+v", got, want)
	}
}

func TestArticleRepo_Upsert(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	repo := pg.NewArticleRepo(db)
	id, err := repo.Upsert(context.Background(), &entity.Article{
		Link: "https://example.com/a", Title: "t", UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert err=%v", err)
	}
	if id != 1 {
		t.Fatalf("id=%d, want 1", id)
	}
}

func TestArticleRepo_BatchUpsert_PartialFailure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectCommit()

	repo := pg.NewArticleRepo(db)
	result, err := repo.BatchUpsert(context.Background(), []*entity.Article{
		{Link: "https://example.com/ok", UpdatedAt: time.Now()},
		{Link: "https://example.com/bad", UpdatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("BatchUpsert err=%v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", result.Succeeded)
	}
	if len(result.Failed) != 1 {
		t.Errorf("Failed = %d, want 1", len(result.Failed))
	}
	if _, ok := result.Failed["https://example.com/bad"]; !ok {
		t.Errorf("expected failure recorded for bad link")
	}
}

func TestArticleRepo_BatchUpsert_Empty(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewArticleRepo(db)
	result, err := repo.BatchUpsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchUpsert err=%v", err)
	}
	if result.Succeeded != 0 || len(result.Failed) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestArticleRepo_BatchCreate_PartialFailure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectCommit()

	repo := pg.NewArticleRepo(db)
	result, err := repo.BatchCreate(context.Background(), []*entity.Article{
		{Link: "https://example.com/new", UpdatedAt: time.Now()},
		{Link: "https://example.com/dup", UpdatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("BatchCreate err=%v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", result.Succeeded)
	}
	if _, ok := result.Failed["https://example.com/dup"]; !ok {
		t.Errorf("expected failure recorded for duplicate link")
	}
}

func TestArticleRepo_BatchCreate_Empty(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewArticleRepo(db)
	result, err := repo.BatchCreate(context.Background(), nil)
	if err != nil {
		t.Fatalf("BatchCreate err=%v", err)
	}
	if result.Succeeded != 0 || len(result.Failed) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestArticleRepo_ExistsByLink(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	links := []string{"https://example.com/1", "https://example.com/2"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT link FROM articles WHERE link = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"link"}).AddRow("https://example.com/1"))

	repo := pg.NewArticleRepo(db)
	result, err := repo.ExistsByLink(context.Background(), links)
	if err != nil {
		t.Fatalf("ExistsByLink err=%v", err)
	}
	if !result["https://example.com/1"] {
		t.Errorf("expected link 1 to exist")
	}
	if result["https://example.com/2"] {
		t.Errorf("expected link 2 to be absent")
	}
}

func TestArticleRepo_ExistsByLink_Empty(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewArticleRepo(db)
	result, err := repo.ExistsByLink(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExistsByLink err=%v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected empty result, got %v", result)
	}
}

func TestArticleRepo_FindAdvanced_FiltersByTaskAndIsScraped(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM articles WHERE task_id")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT.*FROM articles WHERE task_id.*ORDER BY published_at DESC").
		WillReturnRows(articleColumnsRow(&entity.Article{ID: 1, Link: "https://example.com/a"}))

	taskID := int64(7)
	scraped := false
	repo := pg.NewArticleRepo(db)
	page, err := repo.FindAdvanced(context.Background(), repository.ArticleFindFilters{TaskID: &taskID, IsScraped: &scraped}, 1, 20)
	if err != nil {
		t.Fatalf("FindAdvanced err=%v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("page=%+v", page)
	}
}

func TestArticleRepo_FindByKeywords(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM articles WHERE").
		WillReturnRows(articleColumnsRow(&entity.Article{ID: 1, Link: "https://example.com/a", Title: "Go release"}))

	repo := pg.NewArticleRepo(db)
	got, err := repo.FindByKeywords(context.Background(), []string{"Go"}, repository.ArticleFindFilters{})
	if err != nil {
		t.Fatalf("FindByKeywords err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
}

func TestArticleRepo_FindByKeywords_Empty(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewArticleRepo(db)
	got, err := repo.FindByKeywords(context.Background(), nil, repository.ArticleFindFilters{})
	if err != nil {
		t.Fatalf("FindByKeywords err=%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len=%d, want 0", len(got))
	}
}

func TestArticleRepo_Delete(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM articles")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewArticleRepo(db)
	if err := repo.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
}

func TestArticleRepo_Delete_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM articles")).
		WithArgs(int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewArticleRepo(db)
	err := repo.Delete(context.Background(), 999)
	if err == nil {
		t.Fatal("Delete should fail when no rows affected")
	}
}

func TestArticleRepo_Get_DatabaseError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection lost"))

	repo := pg.NewArticleRepo(db)
	got, err := repo.Get(context.Background(), 1)
	if err == nil {
		t.Fatal("Get should return error for database error")
	}
	if got != nil {
		t.Errorf("Get should return nil on error, got=%v", got)
	}
}
