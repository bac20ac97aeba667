package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/events"
)

// PushMessage is a device notification derived from a task event.
type PushMessage struct {
	UserID int64
	Topic  string
	Title  string
	Body   string
}

// PushSender delivers push messages. The default sender only logs.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) error
}

// NotificationService turns task events into push notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	sender     PushSender
}

// NewNotificationService creates the service. A nil sender logs messages instead of sending them.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, sender PushSender) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = logPushSender{logger: logger}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		sender:     sender,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventTaskCreated, n.handleTaskCreated)
	n.dispatcher.Subscribe(events.EventTaskStatusChanged, n.handleTaskStatusChanged)
	n.dispatcher.Subscribe(events.EventTaskDeleted, n.handleTaskDeleted)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.Int64("user_id", event.UserID))
	return nil
}

func (n *NotificationService) handleTaskCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskCreated", zap.Int64("task_id", event.TaskID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TaskCreatedPayload)
	if !ok {
		return nil
	}
	return n.push(ctx, event, "New task", fmt.Sprintf("%s is due %s", payload.Title, payload.DueDate))
}

func (n *NotificationService) handleTaskStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskStatusChanged", zap.Int64("task_id", event.TaskID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TaskStatusChangedPayload)
	if !ok {
		return nil
	}
	return n.push(ctx, event, "Task updated", fmt.Sprintf("Task %d moved from %s to %s", event.TaskID, payload.OldStatus, payload.NewStatus))
}

func (n *NotificationService) handleTaskDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("TaskDeleted", zap.Int64("task_id", event.TaskID))
	payload, ok := event.Payload.(events.TaskDeletedPayload)
	if !ok {
		return nil
	}
	return n.push(ctx, event, "Task removed", payload.Title)
}

func (n *NotificationService) push(ctx context.Context, event events.Event, title, body string) error {
	if !n.cfg.PushEnabled {
		return nil
	}
	msg := PushMessage{UserID: event.UserID, Topic: n.cfg.PushTopic, Title: title, Body: body}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("push %s for user %d: %w", event.Type, event.UserID, err)
	}
	return nil
}

type logPushSender struct {
	logger *zap.Logger
}

func (s logPushSender) Send(_ context.Context, msg PushMessage) error {
	s.logger.Debug("sendPushNotificationStub",
		zap.Int64("user_id", msg.UserID),
		zap.String("topic", msg.Topic),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body))
	return nil
}
