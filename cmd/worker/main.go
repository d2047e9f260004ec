package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/scene-tracker/internal/config"
	"github.com/jwebster45206/scene-tracker/internal/generation"
	"github.com/jwebster45206/scene-tracker/internal/logger"
	"github.com/jwebster45206/scene-tracker/internal/services"
	"github.com/jwebster45206/scene-tracker/internal/services/events"
	"github.com/jwebster45206/scene-tracker/internal/services/queue"
	"github.com/jwebster45206/scene-tracker/internal/storage"
	"github.com/jwebster45206/scene-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Scene Tracker Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"llm_provider", cfg.LLMProvider,
		"fallback_llm_provider", cfg.FallbackLLMProvider)

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	requests := queue.NewRequestQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Storage and the chat lock share the queue connection
	storageService := storage.NewRedisStorageFromClient(queueClient.GetRedisClient(), log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storageService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	schema, err := storage.SeedSchema(storageCtx, storageService, cfg.SchemaFile)
	if err != nil {
		log.Error("Failed to load tracker schema", "error", err, "schema_file", cfg.SchemaFile)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully", "schema_fields", len(schema.Fields))
	if paths := schema.ImplicitPresence(); len(paths) > 0 {
		log.Warn("Schema fields declare no presence, read as DYNAMIC", "fields", paths)
	}

	// Initialize LLM services
	primary, err := services.NewLLMService(cfg.Primary(), log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}
	var fallback services.LLMService
	if fc, ok := cfg.Fallback(); ok {
		if fallback, err = services.NewLLMService(fc, log); err != nil {
			log.Error("Failed to create fallback LLM service", "error", err)
			os.Exit(1)
		}
		log.Info("Fallback LLM provider configured", "provider", fc.Provider, "model", fc.ModelName)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := primary.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "model", cfg.ModelName)

	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)
	generator := generation.New(storageService, primary, fallback, cfg.Settings, log).WithNotifier(broadcaster)
	processor := worker.NewTrackerProcessor(generator, log)
	log.Info("Tracker processor initialized successfully")

	w := worker.New(requests, processor, queueClient.GetRedisClient(), log, cfg.WorkerID)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give the worker time to finish the current request
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("Worker did not stop in time")
	}

	log.Info("Worker exited")
}
