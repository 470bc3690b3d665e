package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/deskhand/helpdesk-service/internal/api/http/handlers"
	"github.com/deskhand/helpdesk-service/internal/auth"
	"github.com/deskhand/helpdesk-service/internal/cache"
	"github.com/deskhand/helpdesk-service/internal/config"
	"github.com/deskhand/helpdesk-service/internal/events"
	"github.com/deskhand/helpdesk-service/internal/observability"
	"github.com/deskhand/helpdesk-service/internal/persistence"
	"github.com/deskhand/helpdesk-service/internal/repository"
	"github.com/deskhand/helpdesk-service/internal/service"
	"github.com/deskhand/helpdesk-service/internal/worker"

	apihttp "github.com/deskhand/helpdesk-service/internal/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	pool := postgres.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	messageRepo := repository.NewChatMessageRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	unreadCache := cache.NewUnreadCounter(redisConn.Client)

	authService := service.NewAuthService(cfg.Auth, userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CategoryRepo: categoryRepo,
		HistoryRepo:  historyRepo,
		Dispatcher:   dispatcher,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     ticketRepo,
		AssignmentRepo: assignmentRepo,
		UserRepo:       userRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
	})
	notificationService := service.NewNotificationService(notificationRepo, unreadCache, logger, metrics, cfg.Notification)
	chatService := service.NewChatService(service.ChatDependencies{
		TicketRepo:    ticketRepo,
		MessageRepo:   messageRepo,
		TicketService: ticketService,
		Dispatcher:    dispatcher,
	})

	worker.StartNotificationWorker(notificationService, dispatcher)

	retention, err := worker.NewRetentionWorker(notificationService, cfg.Notification.SweepSchedule, logger)
	if err != nil {
		logger.Fatal("retention worker setup failed", zap.Error(err))
	}
	retention.Start()
	defer retention.Stop()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})

	apihttp.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	authMW := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	apihttp.RegisterRoutes(app, apihttp.Handlers{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, postgres, redisConn),
		Users:         handlers.NewUsersHandler(authService),
		Tickets:       handlers.NewTicketsHandler(ticketService, categoryRepo),
		Assignments:   handlers.NewAssignmentsHandler(assignmentService),
		Notifications: handlers.NewNotificationsHandler(notificationService),
		Chat:          handlers.NewChatHandler(chatService),
	}, authMW, metrics)

	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
