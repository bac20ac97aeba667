package domain

import "time"

// TaskStatus represents task workflow states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// DueDateLayout is the wire format of task due dates.
const DueDateLayout = "2006-01-02"

// Valid reports whether the status is one of the known workflow states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          int64
	OwnerID     int64
	Title       string
	Description string
	Status      TaskStatus
	DueDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
