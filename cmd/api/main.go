package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/delivery-issue-service/internal/api/dto"
	httptransport "github.com/spec-kit/delivery-issue-service/internal/api/http"
	"github.com/spec-kit/delivery-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/config"
	"github.com/spec-kit/delivery-issue-service/internal/events"
	"github.com/spec-kit/delivery-issue-service/internal/observability"
	"github.com/spec-kit/delivery-issue-service/internal/persistence"
	"github.com/spec-kit/delivery-issue-service/internal/repository"
	"github.com/spec-kit/delivery-issue-service/internal/service"
	"github.com/spec-kit/delivery-issue-service/internal/worker"
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

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	sessionRepo := repository.NewRefreshTokenRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Dispatcher:  dispatcher,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:  issueRepo,
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)
	worker.StartSessionPurge(ctx, authService, logger,
		time.Duration(cfg.Auth.SessionPurgeIntervalMins)*time.Minute)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	validate := dto.NewValidator()
	metrics := observability.NewMetrics()
	rateLimiter := httptransport.NewRateLimiter(redis.Client, cfg.RateLimit, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Env, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService, validate)
	issuesHandler := handlers.NewIssuesHandler(issueService, validate)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           authHandler,
		Issues:         issuesHandler,
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
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
