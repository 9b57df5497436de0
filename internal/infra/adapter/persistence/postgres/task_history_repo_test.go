package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"crawlorch/internal/domain/entity"
	pg "crawlorch/internal/infra/adapter/persistence/postgres"
)

func TestTaskHistoryRepo_Append(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO task_history")).
		WithArgs(int64(1), string(entity.TaskStatusInit), string(entity.TaskStatusLinkCollection), "started").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))

	repo := pg.NewTaskHistoryRepo(db)
	h := &entity.TaskHistory{TaskID: 1, FromState: entity.TaskStatusInit, ToState: entity.TaskStatusLinkCollection, Message: "started"}
	if err := repo.Append(context.Background(), h); err != nil {
		t.Fatalf("Append err=%v", err)
	}
	if h.ID != 7 {
		t.Fatalf("ID=%d, want 7", h.ID)
	}
}

func TestTaskHistoryRepo_Update(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE task_history")).
		WithArgs(string(entity.TaskStatusFailed), "retried", int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewTaskHistoryRepo(db)
	h := &entity.TaskHistory{ID: 7, TaskID: 1, ToState: entity.TaskStatusFailed, Message: "retried"}
	if err := repo.Update(context.Background(), h); err != nil {
		t.Fatalf("Update err=%v", err)
	}
}

func TestTaskHistoryRepo_Update_WrongTask(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE task_history")).
		WithArgs(string(entity.TaskStatusFailed), "retried", int64(7), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewTaskHistoryRepo(db)
	h := &entity.TaskHistory{ID: 7, TaskID: 2, ToState: entity.TaskStatusFailed, Message: "retried"}
	err := repo.Update(context.Background(), h)
	if err == nil {
		t.Fatal("Update should fail when history_id does not belong to task_id")
	}
}

func TestTaskHistoryRepo_ListForTask_DefaultsLimit(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, task_id, from_state, to_state, message, created_at")).
		WithArgs(int64(1), 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "from_state", "to_state", "message", "created_at"}).
			AddRow(1, 1, string(entity.TaskStatusInit), string(entity.TaskStatusLinkCollection), "started", now))

	repo := pg.NewTaskHistoryRepo(db)
	got, err := repo.ListForTask(context.Background(), 1, 0, -5)
	if err != nil {
		t.Fatalf("ListForTask err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
