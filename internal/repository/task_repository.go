package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRepository persists tasks. Every read and write is scoped to an owner.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetForOwner(ctx context.Context, id, ownerID int64) (*domain.Task, error)
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id, ownerID int64) (*domain.Task, error)
}

type taskRepository struct {
	db DBTX
}

// NewTaskRepository returns a Postgres-backed implementation.
func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, owner_id, title, description, status, due_date, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (owner_id, title, description, status, due_date)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		task.OwnerID,
		task.Title,
		task.Description,
		task.Status,
		task.DueDate,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create_task", "owner_id", task.OwnerID)
	}
	return nil
}

func (r *taskRepository) GetForOwner(ctx context.Context, id, ownerID int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id=$1 AND owner_id=$2`

	task, err := scanTask(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		return nil, wrapErr(err, "get_task", "task_id", id)
	}
	return task, nil
}

func (r *taskRepository) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id=$1 ORDER BY id OFFSET $2 LIMIT $3`

	rows, err := r.db.Query(ctx, query, ownerID, offset, limit)
	if err != nil {
		return nil, wrapErr(err, "list_tasks", "owner_id", ownerID)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, wrapErr(err, "list_tasks", "owner_id", ownerID)
	}
	return tasks, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, description=$2, status=$3, due_date=$4, updated_at=NOW()
        WHERE id=$5 AND owner_id=$6
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.DueDate,
		task.ID,
		task.OwnerID,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update_task", "task_id", task.ID)
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID int64) (*domain.Task, error) {
	query := `DELETE FROM tasks WHERE id=$1 AND owner_id=$2 RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		return nil, wrapErr(err, "delete_task", "task_id", id)
	}
	return task, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	result := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}
