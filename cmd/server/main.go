package main

import (
	"fmt"
	"log"
	"net/http"

	"courier/internal/api"
	"courier/internal/api/handlers"
	"courier/internal/api/middleware"
	"courier/internal/engine/events"
	"courier/internal/engine/webhooks"
	"courier/internal/platform/auth"
	"courier/internal/platform/config"
	"courier/internal/platform/database"
	"courier/internal/platform/repositories"
	"courier/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	enterpriseRepo := repositories.NewEnterpriseRepository(db)
	userRepo := repositories.NewUserRepository(db)
	configRepo := repositories.NewWebhookConfigRepository(db)
	queueRepo := repositories.NewQueueRepository(db)

	// Delivery pipeline. The server runs its own scheduler so a
	// single-binary deployment still delivers webhooks.
	scheduler := webhooks.NewTimerScheduler(cfg.Webhooks.WorkerCount)
	defer scheduler.Stop()

	tokens := webhooks.NewTokenCache(cfg.OAuth)
	limiter := webhooks.NewDestinationLimiter()
	worker := webhooks.NewWorker(queueRepo, configRepo, tokens, limiter, scheduler, cfg.Webhooks)
	scheduler.SetProcessor(worker)

	classifier := webhooks.NewRegionClassifier(userRepo, enterpriseRepo)
	router := webhooks.NewRouter(configRepo, queueRepo, classifier, scheduler)
	eventHandler := events.NewHandler(userRepo, enterpriseRepo, router, cfg.Features, nil)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg.Admin, tokenSvc)
	enterpriseHandler := handlers.NewEnterpriseHandler(enterpriseRepo, userRepo)
	configHandler := handlers.NewConfigHandler(configRepo, enterpriseRepo)
	queueHandler := handlers.NewQueueHandler(queueRepo, scheduler)
	eventsHandler := handlers.NewEventsHandler(eventHandler)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	rateLimiter := middleware.NewRateLimiter()

	deps := &api.Dependencies{
		AuthHandler:       authHandler,
		EnterpriseHandler: enterpriseHandler,
		ConfigHandler:     configHandler,
		QueueHandler:      queueHandler,
		EventsHandler:     eventsHandler,
		HealthHandler:     healthHandler,
		AuthMiddleware:    authMiddleware,
		RateLimiter:       rateLimiter,
		RateLimits:        cfg.RateLimit,
	}
	apiRouter := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      apiRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
