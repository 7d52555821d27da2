package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/feliks/curio/internal/config"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/repository"
	"github.com/feliks/curio/internal/service"
)

// Rebuilds the vector index from the database for one user. The index is a
// derived view; any drift from failed asynchronous propagation is repaired
// here.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "curio-reindex",
	})
	logger.SetDefaultLogger(appLogger)

	userID := flag.String("user", "", "User ID to reindex (required)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *userID == "" {
		appLogger.Fatal("Missing required -user flag")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"user_id": *userID,
	}).Info("Starting reindex")

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	contentRepo := repository.NewContentRepository(db)
	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	indexer := service.NewIndexer(contentRepo, qdrantRepo, embeddingService, appLogger, &service.IndexerConfig{
		IndexedChars: cfg.Search.IndexedChars,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	result, err := indexer.ReindexAll(ctx, *userID)
	if err != nil {
		appLogger.WithError(err).Fatal("Reindex failed")
	}

	appLogger.WithFields(logger.Fields{
		"indexed": result.Indexed,
		"failed":  result.Failed,
	}).Info("Reindex completed")
}
