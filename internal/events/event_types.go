package events

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventTaskCreated       EventType = "task_created"
	EventTaskUpdated       EventType = "task_updated"
	EventTaskStatusChanged EventType = "task_status_changed"
	EventTaskDeleted       EventType = "task_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	TaskID    int64       `json:"task_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string `json:"email"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	Title   string            `json:"title"`
	Status  domain.TaskStatus `json:"status"`
	DueDate string            `json:"due_date"`
}

// TaskDetails are the descriptive fields of a task, with the due date as YYYY-MM-DD.
type TaskDetails struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

// TaskUpdatedPayload carries the descriptive fields before and after a change.
type TaskUpdatedPayload struct {
	Old TaskDetails `json:"old"`
	New TaskDetails `json:"new"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
}

// TaskDeletedPayload payload.
type TaskDeletedPayload struct {
	Title string `json:"title"`
}
