package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/drug-risk-ml-server/internal/artifacts"
	"github.com/drug-risk-ml-server/internal/config"
	"github.com/drug-risk-ml-server/internal/logging"
	"github.com/drug-risk-ml-server/internal/training"
	"github.com/drug-risk-ml-server/internal/warehouse"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := warehouse.NewConnection(ctx, &cfg.Warehouse, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to warehouse")
	}
	defer db.Close()

	store := warehouse.NewBreakerStore(
		warehouse.NewPostgresStore(db.Pool, logger), cfg.Warehouse.BreakerTimeout, logger)

	pipeline := training.NewPipeline(store,
		artifacts.NewStore(cfg.Model.ArtifactDir, logger), &cfg.Model, logger)

	result, err := pipeline.Run(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Training run failed")
	}

	fields := make(map[string]interface{}, len(result))
	for k, v := range result {
		fields[k] = v
	}
	logger.WithFields(fields).Info("Training run succeeded")
}
