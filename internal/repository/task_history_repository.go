package repository

import (
	"context"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskHistoryRepository stores task audit entries.
type TaskHistoryRepository interface {
	Create(ctx context.Context, history *domain.TaskHistory) error
	ListByTask(ctx context.Context, taskID, ownerID int64) ([]domain.TaskHistory, error)
}

type taskHistoryRepository struct {
	db DBTX
}

// NewTaskHistoryRepository builds repository.
func NewTaskHistoryRepository(db DBTX) TaskHistoryRepository {
	return &taskHistoryRepository{db: db}
}

func (r *taskHistoryRepository) Create(ctx context.Context, history *domain.TaskHistory) error {
	const query = `
        INSERT INTO task_history (task_id, owner_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		history.TaskID,
		history.OwnerID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return wrapErr(err, "create_task_history", "task_id", history.TaskID)
	}
	return nil
}

func (r *taskHistoryRepository) ListByTask(ctx context.Context, taskID, ownerID int64) ([]domain.TaskHistory, error) {
	const query = `
        SELECT id, task_id, owner_id, change_type, old_value, new_value, created_at
        FROM task_history WHERE task_id=$1 AND owner_id=$2 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, taskID, ownerID)
	if err != nil {
		return nil, wrapErr(err, "list_task_history", "task_id", taskID)
	}
	defer rows.Close()

	result := make([]domain.TaskHistory, 0)
	for rows.Next() {
		var history domain.TaskHistory
		if err := rows.Scan(
			&history.ID,
			&history.TaskID,
			&history.OwnerID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, wrapErr(err, "list_task_history", "task_id", taskID)
		}
		result = append(result, history)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "list_task_history", "task_id", taskID)
	}
	return result, nil
}
