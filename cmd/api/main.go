package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apihttp "github.com/spec-kit/workorder-service/internal/api/http"
	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/sla"
	"github.com/spec-kit/workorder-service/internal/worker"
	"github.com/spec-kit/workorder-service/internal/workflow"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer postgres.Close()

	if cfg.Postgres.RunMigrations && postgres.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, postgres.PoolHandle(), logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := postgres.PoolHandle()
	workOrderRepo := repository.NewWorkOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	technicianRepo := repository.NewTechnicianRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	assetRepo := repository.NewAssetRepository(pool)
	historyRepo := repository.NewStatusHistoryRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	settings, err := sla.LoadSettings(cfg.SLA.SettingsPath)
	if err != nil {
		logger.Fatal("sla settings invalid", zap.Error(err))
	}
	calendar, err := sla.NewCalendar(settings.Calendar)
	if err != nil {
		logger.Fatal("sla calendar invalid", zap.Error(err))
	}
	calculator := sla.NewCalculator(calendar)
	tracker := sla.NewTracker(settings.Policy, calculator)
	escalator := sla.NewEscalator(settings.Policy, calculator)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	workOrderService := service.NewWorkOrderService(service.WorkOrderDependencies{
		WorkOrderRepo:  workOrderRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		AssetRepo:      assetRepo,
		TeamRepo:       teamRepo,
		TechnicianRepo: technicianRepo,
		HistoryRepo:    historyRepo,
		Transitions:    workflow.MustNew(),
		Tracker:        tracker,
		Dispatcher:     dispatcher,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		WorkOrderRepo: workOrderRepo,
		Tracker:       tracker,
		Escalator:     escalator,
		Redis:         redis,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		BatchSize:     cfg.Sweep.BatchSize,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		TechnicianRepo:    technicianRepo,
		PasswordResetRepo: resetRepo,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		WorkOrderService: workOrderService,
		WorkOrderRepo:    workOrderRepo,
		TechnicianRepo:   technicianRepo,
		TeamRepo:         teamRepo,
	})
	technicianService := service.NewTechnicianService(*cfg, service.OrgDependencies{
		AssetRepo:      assetRepo,
		TeamRepo:       teamRepo,
		TechnicianRepo: technicianRepo,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartNotificationWorker(notificationService)

	sweeper := worker.NewSLASweeper(slaService, redis, cfg.Sweep, logger)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})

	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Logger:          logger,
		Metrics:         metrics,
		RequestTimeout:  cfg.App.RequestTimeout(),
		AuthMiddleware:  auth.NewAuthMiddleware(authService.TokenManager(), userRepo, technicianRepo),
		Health:          handlers.NewHealthHandler(postgres, redis),
		Users:           handlers.NewUsersHandler(authService),
		Staff:           handlers.NewStaffHandler(authService),
		WorkOrders:      handlers.NewWorkOrdersHandler(workOrderService),
		StaffWorkOrders: handlers.NewStaffWorkOrdersHandler(workOrderService, assignmentService, slaService),
		Admin:           handlers.NewAdminHandler(technicianService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
