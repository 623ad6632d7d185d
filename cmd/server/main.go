package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drug-risk-ml-server/internal/api"
	"github.com/drug-risk-ml-server/internal/artifacts"
	"github.com/drug-risk-ml-server/internal/audit"
	"github.com/drug-risk-ml-server/internal/cache"
	"github.com/drug-risk-ml-server/internal/config"
	"github.com/drug-risk-ml-server/internal/domain"
	"github.com/drug-risk-ml-server/internal/logging"
	"github.com/drug-risk-ml-server/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(&cfg.Logging)

	// A missing or corrupt bundle is fatal; the service must not
	// answer predictions without loaded models.
	store := artifacts.NewStore(cfg.Model.ArtifactDir, logger)
	bundle, err := store.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load artifact bundle")
	}

	predictor, err := service.NewPredictor(bundle, configManager.GetRiskConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build predictor")
	}

	var predictionCache *cache.PredictionCache
	if cfg.Cache.Enabled {
		predictionCache, err = cache.New(&cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize prediction cache")
		}
		defer predictionCache.Close()
	}

	var auditStore domain.AuditStore
	if cfg.Audit.Enabled {
		sqliteStore, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open audit store")
		}
		asyncStore := audit.NewAsyncStore(sqliteStore, logger)
		defer asyncStore.Close()
		auditStore = asyncStore
	}

	server := api.NewServer(configManager, predictor, predictionCache, auditStore, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithField("port", cfg.Server.Port).Info("Starting drug risk prediction server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
