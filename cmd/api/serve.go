package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/api/dto"
	httptransport "github.com/spec-kit/task-service/internal/api/http"
	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/persistence"
	"github.com/spec-kit/task-service/internal/realtime"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
	"github.com/spec-kit/task-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("memory", false, "use in-memory repositories instead of Postgres and Redis")
}

type stores struct {
	users   repository.UserRepository
	tasks   repository.TaskRepository
	history repository.TaskHistoryRepository
	redis   *persistence.Redis
	health  map[string]handlers.Pinger
	close   func()
}

func runServe(cmd *cobra.Command, _ []string) error {
	memory, _ := cmd.Flags().GetBool("memory")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, err := openStores(ctx, cfg, logger, memory)
	if err != nil {
		return err
	}
	defer st.close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notify, nil))
	history := service.NewHistoryService(st.history, st.tasks, dispatcher, logger)
	history.RegisterHandlers()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		Algorithm: cfg.Auth.JWTAlgorithm,
		Validity:  cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		return err
	}

	var (
		principals  auth.UserLookup = st.users
		invalidator service.PrincipalInvalidator
	)
	if st.redis != nil {
		cache := repository.NewPrincipalCache(st.users, st.redis.Cmdable(), cfg.Redis.PrincipalCacheTTL(), logger)
		principals, invalidator = cache, cache
	}
	guard := auth.NewGuard(tokens, principals, logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   st.users,
		Hasher:     auth.NewArgon2idHasher(),
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Principals: invalidator,
		Logger:     logger,
	})
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:     st.tasks,
		Dispatcher:   dispatcher,
		Logger:       logger,
		PageMaxLimit: cfg.Tasks.PageMaxLimit,
	})

	registry := realtime.NewRegistry(realtime.Options{
		SendBuffer:   cfg.Realtime.SendBuffer,
		WriteTimeout: cfg.Realtime.WriteTimeout(),
		Logger:       logger,
		Recorder:     metrics,
	})
	registryCtx, stopRegistry := context.WithCancel(ctx)
	defer stopRegistry()
	go func() {
		if err := registry.Run(registryCtx); err != nil {
			logger.Error("connection registry stopped", zap.Error(err))
		}
	}()

	validator := dto.NewValidator(cfg.Tasks.TitleMaxLength)
	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.CORSAllowOrigins)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.health),
		Users:  handlers.NewUsersHandler(authService, validator),
		Tasks:  handlers.NewTasksHandler(taskService, history, validator, cfg.Tasks.PageDefaultLimit),
		Chat: handlers.NewChatHandler(registry, guard, handlers.ChatOptions{
			RequireToken:    cfg.Realtime.RequireToken,
			MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		}, logger),
		AuthMiddleware: auth.NewAuthMiddleware(guard),
		Metrics:        metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("memory", memory))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return err
		}
	case sig := <-waitForSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopRegistry()
	select {
	case <-registry.Done():
	case <-time.After(shutdownTimeout):
		return errors.New("connection registry did not stop in time")
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger, memory bool) (*stores, error) {
	if memory {
		logger.Warn("using in-memory repositories; data is lost on exit")
		return &stores{
			users:   repository.NewMemoryUserRepository(),
			tasks:   repository.NewMemoryTaskRepository(),
			history: repository.NewMemoryTaskHistoryRepository(),
			health:  map[string]handlers.Pinger{},
			close:   func() {},
		}, nil
	}

	if cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required (or pass --memory)")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			return nil, err
		}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	redis := persistence.NewRedis(ctx, cfg.Redis, logger)

	pool := pg.PoolHandle()
	return &stores{
		users:   repository.NewUserRepository(pool),
		tasks:   repository.NewTaskRepository(pool),
		history: repository.NewTaskHistoryRepository(pool),
		redis:   redis,
		health: map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		},
		close: func() {
			redis.Close()
			pg.Close()
		},
	}, nil
}

func waitForSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
