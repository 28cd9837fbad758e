package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netfield/fleetacl/internal/api"
	"github.com/netfield/fleetacl/internal/autoassign"
	"github.com/netfield/fleetacl/internal/config"
	"github.com/netfield/fleetacl/internal/engine"
	"github.com/netfield/fleetacl/internal/rollout"
	"github.com/netfield/fleetacl/internal/service"
	"github.com/netfield/fleetacl/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Wire the decision logic
	classifier := autoassign.New(cfg.Policy.ValidOwners, cfg.Policy.AutoACLNameTokens)
	overrides, err := cfg.Policy.BulkMaxHits()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	controller := &rollout.Controller{
		DefaultThreshold: cfg.Policy.BulkMaxHitsDefault,
		Overrides:        overrides,
	}
	synthesizer := &engine.Synthesizer{MaxTerms: cfg.Policy.SynthMaxTerms}
	aclService := service.NewACLService(store, classifier, controller, cfg.Policy.BulkThreshold)

	// Create router
	router := api.NewRouter(store, aclService, synthesizer, cfg.Auth.BootstrapAPIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting fleetacl on http://%s", cfg.Server.Addr())

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
