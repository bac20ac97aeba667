package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
)

func newTaskService(t *testing.T, maxLimit int) (*TaskService, events.Dispatcher) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	return NewTaskService(TaskDependencies{
		TaskRepo:     repository.NewMemoryTaskRepository(),
		Dispatcher:   dispatcher,
		PageMaxLimit: maxLimit,
	}), dispatcher
}

func sampleInput(title string) TaskInput {
	return TaskInput{
		Title:       title,
		Description: "desc",
		Status:      domain.TaskStatusPending,
		DueDate:     time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTaskService_CRUD(t *testing.T) {
	svc, dispatcher := newTaskService(t, 100)
	ctx := context.Background()

	var seen []events.EventType
	for _, et := range []events.EventType{events.EventTaskCreated, events.EventTaskUpdated, events.EventTaskStatusChanged, events.EventTaskDeleted} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			seen = append(seen, e.Type)
			return nil
		})
	}

	task, err := svc.Create(ctx, 1, sampleInput("write report"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.OwnerID)

	got, err := svc.Get(ctx, 1, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write report", got.Title)

	input := sampleInput("write final report")
	input.Status = domain.TaskStatusCompleted
	updated, err := svc.Update(ctx, 1, task.ID, input)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	assert.Equal(t, "write final report", updated.Title)

	deleted, err := svc.Delete(ctx, 1, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, deleted.ID)

	_, err = svc.Get(ctx, 1, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.Equal(t, []events.EventType{
		events.EventTaskCreated,
		events.EventTaskUpdated,
		events.EventTaskStatusChanged,
		events.EventTaskDeleted,
	}, seen)
}

func TestTaskService_UpdatePublishesOnlyRealChanges(t *testing.T) {
	svc, dispatcher := newTaskService(t, 100)
	ctx := context.Background()

	var seen []events.Event
	for _, et := range []events.EventType{events.EventTaskUpdated, events.EventTaskStatusChanged} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			seen = append(seen, e)
			return nil
		})
	}

	task, err := svc.Create(ctx, 1, sampleInput("report"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, 1, task.ID, sampleInput("report"))
	require.NoError(t, err)
	assert.Empty(t, seen)

	statusOnly := sampleInput("report")
	statusOnly.Status = domain.TaskStatusCompleted
	_, err = svc.Update(ctx, 1, task.ID, statusOnly)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, events.EventTaskStatusChanged, seen[0].Type)

	renamed := statusOnly
	renamed.Title = "final report"
	_, err = svc.Update(ctx, 1, task.ID, renamed)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	payload, ok := seen[1].Payload.(events.TaskUpdatedPayload)
	require.True(t, ok)
	assert.Equal(t, "report", payload.Old.Title)
	assert.Equal(t, "final report", payload.New.Title)
}

func TestTaskService_OtherOwnersTasksAreInvisible(t *testing.T) {
	svc, _ := newTaskService(t, 100)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, sampleInput("mine"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = svc.Update(ctx, 2, task.ID, sampleInput("stolen"))
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = svc.Delete(ctx, 2, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	list, err := svc.List(ctx, 2, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTaskService_ListClampsLimit(t *testing.T) {
	svc, _ := newTaskService(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, 1, sampleInput("t"))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, 0, 10000)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	page, err = svc.List(ctx, 1, 4, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestTaskService_DefaultsStatus(t *testing.T) {
	svc, _ := newTaskService(t, 0)
	input := sampleInput("no status")
	input.Status = ""

	task, err := svc.Create(context.Background(), 1, input)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}
