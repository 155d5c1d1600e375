package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/config"
	"github.com/codearena/codearena-go-api/internal/database"
	"github.com/codearena/codearena-go-api/internal/events"
	"github.com/codearena/codearena-go-api/internal/handler"
	"github.com/codearena/codearena-go-api/internal/middleware"
	"github.com/codearena/codearena-go-api/internal/models"
	"github.com/codearena/codearena-go-api/internal/repository"
	"github.com/codearena/codearena-go-api/internal/router"
	"github.com/codearena/codearena-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Problem{}, &models.PendingRequest{}, &models.AuditLog{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	catalog := authz.NewCatalog()
	policy := authz.NewPolicy(catalog)

	userRepo := repository.NewUserRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	requestRepo := repository.NewPendingRequestRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	publisher := events.NewAuditPublisher(natsConn, cfg.EventChannelBase, logger)
	auditService := service.NewAuditService(auditRepo, policy, publisher, logger)
	userActionsService := service.NewUserActionsService(userRepo, requestRepo, auditService, policy, validate, logger)
	problemActionsService := service.NewProblemActionsService(problemRepo, auditService, policy, validate, logger)
	requestService := service.NewRequestService(requestRepo, userRepo, auditService, policy, validate, logger)
	revertService := service.NewRevertService(auditRepo, userRepo, problemRepo, requestRepo, auditService, policy, validate, logger)
	dashboardService := service.NewDashboardService(userRepo, problemRepo, requestRepo, auditRepo, policy, redisClient, cfg.DashboardCacheTTL, logger)

	userActionsHandler := handler.NewUserActionsHandler(userActionsService, logger)
	problemActionsHandler := handler.NewProblemActionsHandler(problemActionsService, logger)
	requestHandler := handler.NewRequestHandler(requestService, logger)
	auditHandler := handler.NewAuditHandler(auditService, revertService, logger)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, catalog, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		Policy:                policy,
		UserActionsHandler:    userActionsHandler,
		ProblemActionsHandler: problemActionsHandler,
		RequestHandler:        requestHandler,
		AuditHandler:          auditHandler,
		DashboardHandler:      dashboardHandler,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
