package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRequest is the body of task create and replace requests. Description
// must be present but may be empty.
type TaskRequest struct {
	Title       string  `json:"title" validate:"required,task_title"`
	Description *string `json:"description" validate:"required"`
	Status      string  `json:"status" validate:"required,oneof=pending in_progress completed"`
	DueDate     string  `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// ParsedDueDate returns the due date. Call only after validation succeeded.
func (r TaskRequest) ParsedDueDate() time.Time {
	due, _ := time.Parse(domain.DueDateLayout, r.DueDate)
	return due
}

// DescriptionValue returns the description. Call only after validation succeeded.
func (r TaskRequest) DescriptionValue() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// TaskListQuery captures pagination parameters.
type TaskListQuery struct {
	Skip  int
	Limit int
}

// TaskResponse represents a task owned by the caller.
type TaskResponse struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	DueDate     string            `json:"due_date"`
	OwnerID     int64             `json:"owner_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewTaskResponse maps a domain task.
func NewTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     t.DueDate.Format(domain.DueDateLayout),
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTaskResponses maps a page of tasks; the result is never nil.
func NewTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, NewTaskResponse(&tasks[i]))
	}
	return out
}

// TaskHistoryResponse is one audit trail entry.
type TaskHistoryResponse struct {
	ID         int64                 `json:"id"`
	ChangeType domain.TaskChangeType `json:"change_type"`
	OldValue   map[string]any        `json:"old_value,omitempty"`
	NewValue   map[string]any        `json:"new_value,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// NewTaskHistoryResponses maps audit entries; the result is never nil.
func NewTaskHistoryResponses(entries []domain.TaskHistory) []TaskHistoryResponse {
	out := make([]TaskHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TaskHistoryResponse{
			ID:         entry.ID,
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}
