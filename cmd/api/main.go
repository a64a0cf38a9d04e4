package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/timmy/tubebench/internal/api"
	"github.com/timmy/tubebench/internal/api/handler"
	"github.com/timmy/tubebench/internal/api/middleware"
	"github.com/timmy/tubebench/internal/app"
	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/metrics"
)

func main() {
	// Initialize logger from LOG_* environment variables
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, cfg, appLogger, app.Options{
		StagingDir: os.Getenv("STAGING_DIR"),
		Registerer: reg,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	// The server consumes its own step messages for every driver.
	pipe, err := a.StartPipeline(ctx, cfg.Queue.Driver, true)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to start pipeline")
	}

	router := api.SetupRouter(api.Handlers{
		Admin:   handler.NewAdminHandler(a.Enrichment(pipe), a.Jobs, a.Tasks, appLogger),
		Channel: handler.NewChannelHandler(a.Channels, a.Baselines, a.Videos),
		Health:  handler.NewHealthHandler(a.DB),
		Metrics: metrics.Handler(reg),
	}, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port":  cfg.Server.Port,
			"mode":  cfg.Server.Mode,
			"queue": cfg.Queue.Driver,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	if err := pipe.Close(); err != nil {
		appLogger.WithError(err).Warn("Pipeline did not shut down cleanly")
	}

	appLogger.Info("Server exited")
}
