package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/ticketflow/ticketflow/internal/api/http"
	"github.com/ticketflow/ticketflow/internal/api/http/handlers"
	"github.com/ticketflow/ticketflow/internal/auth"
	"github.com/ticketflow/ticketflow/internal/cache"
	"github.com/ticketflow/ticketflow/internal/config"
	"github.com/ticketflow/ticketflow/internal/events"
	"github.com/ticketflow/ticketflow/internal/observability"
	"github.com/ticketflow/ticketflow/internal/persistence"
	"github.com/ticketflow/ticketflow/internal/repository"
	"github.com/ticketflow/ticketflow/internal/service"
	"github.com/ticketflow/ticketflow/internal/storage"
	"github.com/ticketflow/ticketflow/internal/worker"
	"github.com/ticketflow/ticketflow/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	blobs, err := storage.NewDiskStore(cfg.Storage.UploadDir)
	if err != nil {
		logger.Fatal("failed to init blob store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	ratingRepo := repository.NewRatingRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)

	if cfg.App.SeedDefaultUsers {
		if err := service.SeedDefaultUsers(ctx, userRepo, cfg.Auth.BcryptCost, logger); err != nil {
			logger.Fatal("failed to seed default users", zap.Error(err))
		}
	}

	dispatcher := events.NewInMemoryDispatcher()
	ticketCache := cache.NewTicketCache(redis.Client, cfg.Redis.TicketTTL())
	policy := workflow.Policy{AllowReopen: cfg.Workflow.AllowReopen}

	authService := service.NewAuthService(cfg.Auth, userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		RatingRepo: ratingRepo,
		Policy:     policy,
		Cache:      ticketCache,
		Dispatcher: dispatcher,
	})
	associationService := service.NewAssociationService(service.AssociationDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		RatingRepo:  ratingRepo,
		Cache:       ticketCache,
		Dispatcher:  dispatcher,
	})
	fileService := service.NewFileService(service.FileDependencies{
		AttachmentRepo: attachmentRepo,
		TicketRepo:     ticketRepo,
		Blobs:          blobs,
		Cache:          ticketCache,
		Dispatcher:     dispatcher,
	})
	userService := service.NewUserService(userRepo, cfg.Auth.BcryptCost)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, associationService),
		Files:          handlers.NewFilesHandler(fileService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
