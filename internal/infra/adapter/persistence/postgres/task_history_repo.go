package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/repository"
)

// TaskHistoryRepo is the postgres-backed TaskHistoryRepository.
type TaskHistoryRepo struct{ db *sql.DB }

func NewTaskHistoryRepo(db *sql.DB) repository.TaskHistoryRepository {
	return &TaskHistoryRepo{db: db}
}

func (repo *TaskHistoryRepo) Append(ctx context.Context, h *entity.TaskHistory) error {
	const query = `
INSERT INTO task_history (task_id, from_state, to_state, message)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`
	return repo.db.QueryRowContext(ctx, query, h.TaskID, string(h.FromState), string(h.ToState), h.Message).
		Scan(&h.ID, &h.CreatedAt)
}

// Update patches an existing history row's terminal state and message.
// The WHERE clause scopes to history.TaskID as well as ID, so a history_id
// that belongs to a different task affects zero rows and is reported as a
// mismatch rather than silently patching the wrong task's audit trail.
func (repo *TaskHistoryRepo) Update(ctx context.Context, h *entity.TaskHistory) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE task_history SET to_state = $1, message = $2 WHERE id = $3 AND task_id = $4`,
		string(h.ToState), h.Message, h.ID, h.TaskID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Update: history %d does not belong to task %d: %w", h.ID, h.TaskID, entity.ErrNotFound)
	}
	return nil
}

func (repo *TaskHistoryRepo) ListForTask(ctx context.Context, taskID int64, limit, offset int) ([]*entity.TaskHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := repo.db.QueryContext(ctx,
		`SELECT id, task_id, from_state, to_state, message, created_at
           FROM task_history WHERE task_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`, taskID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListForTask: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.TaskHistory, 0, 16)
	for rows.Next() {
		var h entity.TaskHistory
		var from, to string
		if err := rows.Scan(&h.ID, &h.TaskID, &from, &to, &h.Message, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListForTask: Scan: %w", err)
		}
		h.FromState = entity.TaskStatus(from)
		h.ToState = entity.TaskStatus(to)
		out = append(out, &h)
	}
	return out, rows.Err()
}
