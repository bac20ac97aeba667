package domain

import "time"

// TaskChangeType captures what changed in a history entry.
type TaskChangeType string

const (
	ChangeTypeCreated TaskChangeType = "CREATED"
	ChangeTypeStatus  TaskChangeType = "STATUS_CHANGE"
	ChangeTypeDetails TaskChangeType = "DETAILS_CHANGE"
)

// TaskHistory is an immutable audit trail entry.
type TaskHistory struct {
	ID         int64
	TaskID     int64
	OwnerID    int64
	ChangeType TaskChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
