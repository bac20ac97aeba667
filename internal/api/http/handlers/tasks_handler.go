package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/service"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// TasksHandler manages the caller's tasks.
type TasksHandler struct {
	service      *service.TaskService
	history      *service.HistoryService
	validator    *dto.Validator
	defaultLimit int
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService, history *service.HistoryService, validator *dto.Validator, defaultLimit int) *TasksHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &TasksHandler{service: taskService, history: history, validator: validator, defaultLimit: defaultLimit}
}

// CreateTask POST /tasks.
func (h *TasksHandler) CreateTask(c *fiber.Ctx) error {
	owner, err := currentUser(c)
	if err != nil {
		return err
	}
	input, err := h.parseTask(c)
	if err != nil {
		return err
	}

	task, err := h.service.Create(c.UserContext(), owner.ID, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// ListTasks GET /tasks.
func (h *TasksHandler) ListTasks(c *fiber.Ctx) error {
	owner, err := currentUser(c)
	if err != nil {
		return err
	}
	query, err := h.parseListQuery(c)
	if err != nil {
		return err
	}

	tasks, err := h.service.List(c.UserContext(), owner.ID, query.Skip, query.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponses(tasks)})
}

// GetTask GET /tasks/:id.
func (h *TasksHandler) GetTask(c *fiber.Ctx) error {
	owner, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.service.Get(c.UserContext(), owner.ID, id)
	if err != nil {
		return mapTaskError(err, id)
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// UpdateTask PUT /tasks/:id replaces every writable field.
func (h *TasksHandler) UpdateTask(c *fiber.Ctx) error {
	owner, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}
	input, err := h.parseTask(c)
	if err != nil {
		return err
	}

	task, err := h.service.Update(c.UserContext(), owner.ID, id, input)
	if err != nil {
		return mapTaskError(err, id)
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// DeleteTask DELETE /tasks/:id returns the removed task.
func (h *TasksHandler) DeleteTask(c *fiber.Ctx) error {
	owner, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.service.Delete(c.UserContext(), owner.ID, id)
	if err != nil {
		return mapTaskError(err, id)
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// TaskHistory GET /tasks/:id/history.
func (h *TasksHandler) TaskHistory(c *fiber.Ctx) error {
	owner, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	entries, err := h.history.List(c.UserContext(), owner.ID, id)
	if err != nil {
		return mapTaskError(err, id)
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskHistoryResponses(entries)})
}

func (h *TasksHandler) parseTask(c *fiber.Ctx) (service.TaskInput, error) {
	var req dto.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return service.TaskInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return service.TaskInput{}, err
	}
	return service.TaskInput{
		Title:       req.Title,
		Description: req.DescriptionValue(),
		Status:      domain.TaskStatus(req.Status),
		DueDate:     req.ParsedDueDate(),
	}, nil
}

func (h *TasksHandler) parseListQuery(c *fiber.Ctx) (dto.TaskListQuery, error) {
	query := dto.TaskListQuery{Skip: 0, Limit: h.defaultLimit}
	details := map[string]any{}

	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			details["skip"] = "value is not a valid integer"
		case skip < 0:
			details["skip"] = "value must be greater than or equal to 0"
		default:
			query.Skip = skip
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			details["limit"] = "value is not a valid integer"
		case limit < 1:
			details["limit"] = "value must be greater than or equal to 1"
		default:
			query.Limit = limit
		}
	}

	if len(details) > 0 {
		return dto.TaskListQuery{}, apperrors.NewValidationError("invalid pagination", details)
	}
	return query, nil
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized(auth.ErrNotAuthenticated.Error())
	}
	return user, nil
}

func taskID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid task id", map[string]any{"id": "value is not a valid integer"})
	}
	return id, nil
}

func mapTaskError(err error, id int64) error {
	if errors.Is(err, service.ErrTaskNotFound) {
		return apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	return err
}
