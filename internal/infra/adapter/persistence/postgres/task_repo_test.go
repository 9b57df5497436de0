package postgres_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"crawlorch/internal/domain/entity"
	pg "crawlorch/internal/infra/adapter/persistence/postgres"
)

func TestTaskRepo_Update(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET scrape_mode")).
		WithArgs(string(entity.ScrapeModeLinksOnly), sqlmock.AnyArg(), 5, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewTaskRepo(db)
	err := repo.Update(context.Background(), 1, entity.ScrapeModeLinksOnly, map[string]any{"max_pages": 3}, 5)
	if err != nil {
		t.Fatalf("Update err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTaskRepo_Update_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET scrape_mode")).
		WithArgs(string(entity.ScrapeModeFullScrape), sqlmock.AnyArg(), 3, int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewTaskRepo(db)
	err := repo.Update(context.Background(), 999, entity.ScrapeModeFullScrape, nil, 3)
	if err == nil {
		t.Fatal("Update should fail when no rows affected")
	}
}

func TestTaskRepo_Delete(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewTaskRepo(db)
	if err := repo.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
}

func TestTaskRepo_Delete_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).
		WithArgs(int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewTaskRepo(db)
	err := repo.Delete(context.Background(), 999)
	if err == nil {
		t.Fatal("Delete should fail when no rows affected")
	}
}

func TestTaskRepo_ResetRetryCount(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET retry_count = 0")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewTaskRepo(db)
	if err := repo.ResetRetryCount(context.Background(), 1); err != nil {
		t.Fatalf("ResetRetryCount err=%v", err)
	}
}

func TestTaskRepo_ResetRetryCount_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET retry_count = 0")).
		WithArgs(int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewTaskRepo(db)
	err := repo.ResetRetryCount(context.Background(), 999)
	if err == nil {
		t.Fatal("ResetRetryCount should fail when no rows affected")
	}
}

func TestTaskRepo_UpdateMaxRetries(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET max_retries")).
		WithArgs(10, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewTaskRepo(db)
	if err := repo.UpdateMaxRetries(context.Background(), 1, 10); err != nil {
		t.Fatalf("UpdateMaxRetries err=%v", err)
	}
}

func TestTaskRepo_UpdateMaxRetries_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET max_retries")).
		WithArgs(10, int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewTaskRepo(db)
	err := repo.UpdateMaxRetries(context.Background(), 999, 10)
	if err == nil {
		t.Fatal("UpdateMaxRetries should fail when no rows affected")
	}
}
