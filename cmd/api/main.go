package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/escape-engine/internal/config"
	"github.com/jwebster45206/escape-engine/internal/handlers"
	"github.com/jwebster45206/escape-engine/internal/logger"
	"github.com/jwebster45206/escape-engine/internal/middleware"
	"github.com/jwebster45206/escape-engine/internal/services/events"
	"github.com/jwebster45206/escape-engine/internal/services/sessions"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Escape Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
		"tick_interval", cfg.TickInterval)

	// Initialize storage and wait for Redis
	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, cfg.SessionTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	// Open the solve ledger
	ledger, err := storage.OpenLedger(cfg.LedgerPath, log)
	if err != nil {
		log.Error("Failed to open ledger", "error", err, "path", cfg.LedgerPath)
		os.Exit(1)
	}

	broadcaster := events.NewBroadcaster(store.Client(), log)
	manager := sessions.NewManager(store, ledger, broadcaster, log)

	// Start the tick worker for live sessions
	ticker := worker.New(manager, cfg.TickInterval, cfg.SessionTTL, log, "")
	go func() {
		if err := ticker.Start(); err != nil {
			log.Error("Worker stopped with error", "error", err)
		}
	}()

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, manager, log)
	mux.Handle("/health", healthHandler)

	roomHandler := handlers.NewRoomHandler(log, store, manager)
	mux.Handle("/v1/rooms", roomHandler)
	mux.Handle("/v1/rooms/", roomHandler)

	streamHandler := handlers.NewStreamHandler(store.Client(), manager, log)
	sessionHandler := handlers.NewSessionHandler(log, manager, streamHandler)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	eventsHandler := handlers.NewEventsHandler(store.Client(), log)
	mux.Handle("/v1/events/sessions/", eventsHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout removed to enable streaming - streaming endpoints handle their own timeouts
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
	ticker.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Save live sessions before closing storage
	if err := manager.Close(shutdownCtx); err != nil {
		log.Error("Failed to save live sessions", "error", err)
	}
	if err := ledger.Close(); err != nil {
		log.Error("Error closing ledger", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
