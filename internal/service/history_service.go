package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

// HistoryService keeps an audit trail of task changes fed by task events.
type HistoryService struct {
	history    repository.TaskHistoryRepository
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewHistoryService creates the service.
func NewHistoryService(history repository.TaskHistoryRepository, tasks repository.TaskRepository, dispatcher events.Dispatcher, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{history: history, tasks: tasks, dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to task events.
func (h *HistoryService) RegisterHandlers() {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Subscribe(events.EventTaskCreated, h.handleTaskCreated)
	h.dispatcher.Subscribe(events.EventTaskUpdated, h.handleTaskUpdated)
	h.dispatcher.Subscribe(events.EventTaskStatusChanged, h.handleTaskStatusChanged)
}

// List returns the audit trail of one of the owner's tasks.
func (h *HistoryService) List(ctx context.Context, ownerID, taskID int64) ([]domain.TaskHistory, error) {
	if _, err := h.tasks.GetForOwner(ctx, taskID, ownerID); err != nil {
		return nil, notFound(err)
	}
	return h.history.ListByTask(ctx, taskID, ownerID)
}

func (h *HistoryService) handleTaskCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskCreatedPayload)
	if !ok {
		return nil
	}
	return h.record(ctx, event, domain.ChangeTypeCreated, nil, map[string]any{
		"title":    payload.Title,
		"status":   string(payload.Status),
		"due_date": payload.DueDate,
	})
}

func (h *HistoryService) handleTaskUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskUpdatedPayload)
	if !ok {
		return nil
	}
	return h.record(ctx, event, domain.ChangeTypeDetails, detailsValue(payload.Old), detailsValue(payload.New))
}

func detailsValue(details events.TaskDetails) map[string]any {
	return map[string]any{
		"title":       details.Title,
		"description": details.Description,
		"due_date":    details.DueDate,
	}
}

func (h *HistoryService) handleTaskStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskStatusChangedPayload)
	if !ok {
		return nil
	}
	return h.record(ctx, event, domain.ChangeTypeStatus,
		map[string]any{"status": string(payload.OldStatus)},
		map[string]any{"status": string(payload.NewStatus)})
}

func (h *HistoryService) record(ctx context.Context, event events.Event, change domain.TaskChangeType, oldValue, newValue map[string]any) error {
	entry := &domain.TaskHistory{
		TaskID:     event.TaskID,
		OwnerID:    event.UserID,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := h.history.Create(ctx, entry); err != nil {
		h.logger.Warn("recording task history failed", zap.Int64("task_id", event.TaskID), zap.Error(err))
		return err
	}
	return nil
}
