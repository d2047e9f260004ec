package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/scene-tracker/internal/config"
	"github.com/jwebster45206/scene-tracker/internal/generation"
	"github.com/jwebster45206/scene-tracker/internal/handlers"
	"github.com/jwebster45206/scene-tracker/internal/logger"
	"github.com/jwebster45206/scene-tracker/internal/middleware"
	"github.com/jwebster45206/scene-tracker/internal/services"
	"github.com/jwebster45206/scene-tracker/internal/services/events"
	"github.com/jwebster45206/scene-tracker/internal/services/queue"
	"github.com/jwebster45206/scene-tracker/internal/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Scene Tracker API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"fallback_llm_provider", cfg.FallbackLLMProvider,
		"model_name", cfg.ModelName)

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
	}

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
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
	log.Info("Storage connection established successfully", "schema_fields", len(schema.Fields))
	if paths := schema.ImplicitPresence(); len(paths) > 0 {
		log.Warn("Schema fields declare no presence, read as DYNAMIC", "fields", paths)
	}

	// Initialize the model on startup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := primary.InitModel(ctx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	requests := queue.NewRequestQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)
	generator := generation.New(storageService, primary, fallback, cfg.Settings, log).WithNotifier(broadcaster)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(storageService, requests, log)
	mux.Handle("/health", healthHandler)

	chatHandler := handlers.NewChatHandler(storageService, generator, requests, broadcaster, log)
	mux.Handle("/v1/chats", chatHandler)
	mux.Handle("/v1/chats/", chatHandler)

	schemaHandler := handlers.NewSchemaHandler(tracker.NewSchemaRef(schema), storageService, cfg.Settings.Format, log)
	mux.Handle("/v1/schema", schemaHandler)
	mux.Handle("/v1/schema/", schemaHandler)

	eventsHandler := handlers.NewEventsHandler(broadcaster, log)
	mux.Handle("/v1/events/chats/", eventsHandler)

	handler := middleware.Logger(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: event streams and inline generation hold the response open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Storage shares the queue connection
	if err := queueClient.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	log.Info("Server exited")
}
