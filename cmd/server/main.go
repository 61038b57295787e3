package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conduit/conduit/config"
	"github.com/conduit/conduit/internal/api"
	"github.com/conduit/conduit/internal/api/handlers"
	"github.com/conduit/conduit/internal/core/endpoint"
	"github.com/conduit/conduit/internal/core/schema"
	"github.com/conduit/conduit/internal/core/validation"
	"github.com/conduit/conduit/internal/logging"
	"github.com/conduit/conduit/internal/storage/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Format, cfg.Logging.Level)

	db, err := database.NewClient(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database", "driver", db.Driver)

	// Repositories
	schemaRepo := schema.NewRepository(db)
	endpointRepo := endpoint.NewRepository(db)

	// Services
	schemaService := schema.NewService(schemaRepo, endpointRepo, validation.NewValidator(), logger)
	endpointService := endpoint.NewService(endpointRepo, schemaService, cfg.Endpoints.MaxQueryNodes, logger)

	// Handlers
	schemaHandler := handlers.NewSchemaHandler(schemaService)
	endpointHandler := handlers.NewEndpointHandler(endpointService)

	router := api.NewRouter(schemaHandler, endpointHandler, logger)
	engine := router.Setup(cfg.Server.Mode)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
