package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/repository"
)

// TaskRepo is the postgres-backed TaskRepository.
type TaskRepo struct{ db *sql.DB }

func NewTaskRepo(db *sql.DB) repository.TaskRepository {
	return &TaskRepo{db: db}
}

const taskColumns = `id, crawler_id, status, scrape_mode, task_args, retry_count, max_retries,
       scrape_phase, progress_pct, result_message, result_success, partial_saved,
       created_at, updated_at, started_at, completed_at`

func (repo *TaskRepo) Create(ctx context.Context, t *entity.Task) (int64, error) {
	args, err := json.Marshal(t.TaskArgs)
	if err != nil {
		return 0, fmt.Errorf("Create: marshal task_args: %w", err)
	}
	const query = `
INSERT INTO tasks (crawler_id, status, scrape_mode, task_args, retry_count, max_retries)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	var id int64
	err = repo.db.QueryRowContext(ctx, query,
		t.CrawlerID, string(t.Status), string(t.ScrapeMode), args, t.RetryCount, t.MaxRetries,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	return id, nil
}

func (repo *TaskRepo) Get(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := repo.db.QueryRowContext(ctx, query, id)

	var t entity.Task
	var status, mode, phase string
	var args []byte
	err := row.Scan(&t.ID, &t.CrawlerID, &status, &mode, &args, &t.RetryCount, &t.MaxRetries,
		&phase, &t.ProgressPct, &t.ResultMessage, &t.ResultSuccess, &t.PartialSaved,
		&t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	t.Status = entity.TaskStatus(status)
	t.ScrapeMode = entity.ScrapeMode(mode)
	t.ScrapePhase = entity.ScrapePhase(phase)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &t.TaskArgs); err != nil {
			return nil, fmt.Errorf("Get: unmarshal task_args: %w", err)
		}
	}
	return &t, nil
}

func (repo *TaskRepo) Update(ctx context.Context, id int64, scrapeMode entity.ScrapeMode, taskArgs map[string]any, maxRetries int) error {
	args, err := json.Marshal(taskArgs)
	if err != nil {
		return fmt.Errorf("Update: marshal task_args: %w", err)
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE tasks SET scrape_mode = $1, task_args = $2, max_retries = $3, updated_at = now() WHERE id = $4`,
		string(scrapeMode), args, maxRetries, id)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return requireRowsAffected(res, "Update")
}

func (repo *TaskRepo) Delete(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return requireRowsAffected(res, "Delete")
}

func (repo *TaskRepo) ResetRetryCount(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE tasks SET retry_count = 0, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ResetRetryCount: %w", err)
	}
	return requireRowsAffected(res, "ResetRetryCount")
}

func (repo *TaskRepo) UpdateMaxRetries(ctx context.Context, id int64, maxRetries int) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE tasks SET max_retries = $1, updated_at = now() WHERE id = $2`, maxRetries, id)
	if err != nil {
		return fmt.Errorf("UpdateMaxRetries: %w", err)
	}
	return requireRowsAffected(res, "UpdateMaxRetries")
}

// requireRowsAffected turns a zero-rows-affected Exec result into
// entity.ErrNotFound, since postgres silently no-ops an UPDATE/DELETE
// whose WHERE clause matched nothing.
func requireRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrNotFound)
	}
	return nil
}

func (repo *TaskRepo) UpdateStatus(ctx context.Context, id int64, status entity.TaskStatus) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return nil
}

func (repo *TaskRepo) UpdateProgress(ctx context.Context, id int64, phase entity.ScrapePhase, pct int) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE tasks SET scrape_phase = $1, progress_pct = $2, updated_at = now() WHERE id = $3`,
		string(phase), pct, id)
	if err != nil {
		return fmt.Errorf("UpdateProgress: %w", err)
	}
	return nil
}

func (repo *TaskRepo) IncrementRetryCount(ctx context.Context, id int64) (int, error) {
	var retryCount int
	err := repo.db.QueryRowContext(ctx,
		`UPDATE tasks SET retry_count = retry_count + 1 WHERE id = $1 RETURNING retry_count`, id,
	).Scan(&retryCount)
	if err != nil {
		return 0, fmt.Errorf("IncrementRetryCount: %w", err)
	}
	return retryCount, nil
}

func (repo *TaskRepo) Complete(ctx context.Context, id int64, status entity.TaskStatus, success bool, message string, partialSaved bool) error {
	const query = `
UPDATE tasks SET
       status = $1, result_success = $2, result_message = $3, partial_saved = $4,
       completed_at = now(), updated_at = now()
WHERE id = $5`
	_, err := repo.db.ExecContext(ctx, query, string(status), success, message, partialSaved, id)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

func (repo *TaskRepo) FindAdvanced(ctx context.Context, filters repository.TaskFindFilters, page, pageSize int) (repository.TaskPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var conditions []string
	var args []any
	idx := 1
	if filters.CrawlerID != nil {
		conditions = append(conditions, fmt.Sprintf("crawler_id = $%d", idx))
		args = append(args, *filters.CrawlerID)
		idx++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(*filters.Status))
		idx++
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE "
		for i, c := range conditions {
			if i > 0 {
				where += " AND "
			}
			where += c
		}
	}

	var total int64
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks `+where, args...).Scan(&total); err != nil {
		return repository.TaskPage{}, fmt.Errorf("FindAdvanced: count: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, where, idx, idx+1)
	rows, err := repo.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return repository.TaskPage{}, fmt.Errorf("FindAdvanced: select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.Task, 0, pageSize)
	for rows.Next() {
		var t entity.Task
		var status, mode, phase string
		var rawArgs []byte
		if err := rows.Scan(&t.ID, &t.CrawlerID, &status, &mode, &rawArgs, &t.RetryCount, &t.MaxRetries,
			&phase, &t.ProgressPct, &t.ResultMessage, &t.ResultSuccess, &t.PartialSaved,
			&t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
			return repository.TaskPage{}, fmt.Errorf("FindAdvanced: Scan: %w", err)
		}
		t.Status = entity.TaskStatus(status)
		t.ScrapeMode = entity.ScrapeMode(mode)
		t.ScrapePhase = entity.ScrapePhase(phase)
		if len(rawArgs) > 0 {
			_ = json.Unmarshal(rawArgs, &t.TaskArgs)
		}
		items = append(items, &t)
	}
	return repository.TaskPage{Items: items, Total: total, Page: page, PageSize: pageSize}, rows.Err()
}

// FindFailedSince returns the IDs of tasks that failed at or after since,
// restricted to tasks whose owning Crawler is still active — a deactivated
// Crawler's failed tasks must not resurface in the retry sweep.
func (repo *TaskRepo) FindFailedSince(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT t.id FROM tasks t
		 JOIN crawlers c ON c.id = t.crawler_id
		 WHERE t.status = $1 AND t.updated_at >= $2 AND c.active = TRUE`,
		string(entity.TaskStatusFailed), since)
	if err != nil {
		return nil, fmt.Errorf("FindFailedSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("FindFailedSince: Scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
