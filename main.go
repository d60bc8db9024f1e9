package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"admira-report/internal/client"
	"admira-report/internal/config"
	"admira-report/internal/export"
	"admira-report/internal/handlers"
	"admira-report/internal/report"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Starting Admira Report Service")

	// Initialize components
	builder := report.NewBuilder(report.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxFileRows:    cfg.MaxFileRows,
		TopN:           cfg.BreakdownTopN,
	}, logger)
	httpClient := client.NewHTTPClient(cfg, logger)
	exporter := export.NewExporter(cfg.RenderSinkURL, cfg.RenderSinkSecret, httpClient, logger)

	handler := handlers.New(cfg, builder, exporter, logger)

	// Setup Gin router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	// Both periods arrive in one request.
	router.MaxMultipartMemory = 2 * cfg.MaxUploadBytes

	// Health endpoints
	router.GET("/healthz", handler.HealthCheck)
	router.GET("/readyz", handler.ReadinessCheck)

	router.GET("/objectives", handler.ListObjectives)

	// Report endpoints
	router.POST("/reports", handler.CreateReport)
	router.POST("/reports/json", handler.CreateReportJSON)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":             cfg.Port,
			"delivery_enabled": exporter.Enabled(),
		}).Info("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
