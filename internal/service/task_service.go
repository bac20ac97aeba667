package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

// ErrTaskNotFound is returned when a task does not exist or belongs to another user.
var ErrTaskNotFound = errors.New("task not found")

// TaskInput carries the writable fields of a task.
type TaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	DueDate     time.Time
}

// TaskService coordinates task workflows. Every operation is scoped to the acting owner.
type TaskService struct {
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	maxLimit   int
}

// TaskDependencies bundles collaborators of the task service.
type TaskDependencies struct {
	TaskRepo     repository.TaskRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	PageMaxLimit int
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		maxLimit:   deps.PageMaxLimit,
	}
}

// Create stores a new task owned by ownerID.
func (s *TaskService) Create(ctx context.Context, ownerID int64, input TaskInput) (*domain.Task, error) {
	task := &domain.Task{OwnerID: ownerID}
	applyInput(task, input)

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:   events.EventTaskCreated,
		UserID: ownerID,
		TaskID: task.ID,
		Payload: events.TaskCreatedPayload{
			Title:   task.Title,
			Status:  task.Status,
			DueDate: task.DueDate.Format(domain.DueDateLayout),
		},
	})
	return task, nil
}

// List returns a page of the owner's tasks. limit is clamped to the configured maximum.
func (s *TaskService) List(ctx context.Context, ownerID int64, skip, limit int) ([]domain.Task, error) {
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.tasks.ListByOwner(ctx, ownerID, skip, limit)
}

// Get returns one of the owner's tasks.
func (s *TaskService) Get(ctx context.Context, ownerID, taskID int64) (*domain.Task, error) {
	task, err := s.tasks.GetForOwner(ctx, taskID, ownerID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

// Update replaces the writable fields of one of the owner's tasks.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID int64, input TaskInput) (*domain.Task, error) {
	task, err := s.tasks.GetForOwner(ctx, taskID, ownerID)
	if err != nil {
		return nil, notFound(err)
	}
	oldStatus := task.Status
	oldDetails := detailsOf(task)

	applyInput(task, input)
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, notFound(err)
	}

	if newDetails := detailsOf(task); newDetails != oldDetails {
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:    events.EventTaskUpdated,
			UserID:  ownerID,
			TaskID:  task.ID,
			Payload: events.TaskUpdatedPayload{Old: oldDetails, New: newDetails},
		})
	}
	if oldStatus != task.Status {
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:    events.EventTaskStatusChanged,
			UserID:  ownerID,
			TaskID:  task.ID,
			Payload: events.TaskStatusChangedPayload{OldStatus: oldStatus, NewStatus: task.Status},
		})
	}
	return task, nil
}

// Delete removes one of the owner's tasks and returns it.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID int64) (*domain.Task, error) {
	task, err := s.tasks.Delete(ctx, taskID, ownerID)
	if err != nil {
		return nil, notFound(err)
	}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventTaskDeleted,
		UserID:  ownerID,
		TaskID:  task.ID,
		Payload: events.TaskDeletedPayload{Title: task.Title},
	})
	return task, nil
}

func applyInput(task *domain.Task, input TaskInput) {
	task.Title = strings.TrimSpace(input.Title)
	task.Description = strings.TrimSpace(input.Description)
	task.Status = input.Status
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	task.DueDate = input.DueDate
}

func detailsOf(task *domain.Task) events.TaskDetails {
	return events.TaskDetails{
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate.Format(domain.DueDateLayout),
	}
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
