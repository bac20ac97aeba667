package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tasks          *handlers.TasksHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")
	api.Post("/register", cfg.Users.Register)
	api.Post("/login", cfg.Users.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireActive())
	protected.Get("/users/me", cfg.Users.Me)
	protected.Post("/tasks", cfg.Tasks.CreateTask)
	protected.Get("/tasks", cfg.Tasks.ListTasks)
	protected.Get("/tasks/:id", cfg.Tasks.GetTask)
	protected.Put("/tasks/:id", cfg.Tasks.UpdateTask)
	protected.Delete("/tasks/:id", cfg.Tasks.DeleteTask)
	protected.Get("/tasks/:id/history", cfg.Tasks.TaskHistory)

	app.Get("/ws/chat/:user_id", cfg.Chat.Upgrade, cfg.Chat.Serve())
}
