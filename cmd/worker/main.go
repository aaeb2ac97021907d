package main

import (
	"log"
	"time"

	"courier/internal/engine/webhooks"
	"courier/internal/platform/config"
	"courier/internal/platform/database"
	"courier/internal/platform/repositories"
	"courier/internal/pkg/logger"
	"courier/internal/workers"
)

// Processing entries older than this are assumed orphaned. The largest
// configurable delivery timeout is 300s, so 10 minutes is safely past any
// live attempt.
const staleProcessingAge = 10 * time.Minute

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

	configRepo := repositories.NewWebhookConfigRepository(db)
	queueRepo := repositories.NewQueueRepository(db)

	scheduler := webhooks.NewTimerScheduler(cfg.Webhooks.WorkerCount)
	defer scheduler.Stop()

	tokens := webhooks.NewTokenCache(cfg.OAuth)
	limiter := webhooks.NewDestinationLimiter()
	worker := webhooks.NewWorker(queueRepo, configRepo, tokens, limiter, scheduler, cfg.Webhooks)
	scheduler.SetProcessor(worker)

	sweeper := workers.NewSweeper(queueRepo, scheduler)

	log.Println("Starting webhook delivery workers...")

	go runRetrySweeper(sweeper, cfg.Webhooks.SweepInterval)
	go runStaleReaper(sweeper)

	// Keep process alive
	select {}
}

func runRetrySweeper(sweeper *workers.Sweeper, interval time.Duration) {
	// Pick up entries that were due before this process started.
	sweeper.SweepDueRetries()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		sweeper.SweepDueRetries()
	}
}

func runStaleReaper(sweeper *workers.Sweeper) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sweeper.ReapStaleProcessing(staleProcessingAge)
	}
}
