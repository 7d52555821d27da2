package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feliks/curio/internal/api"
	"github.com/feliks/curio/internal/api/middleware"
	"github.com/feliks/curio/internal/config"
	"github.com/feliks/curio/internal/extract"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/repository"
	"github.com/feliks/curio/internal/service"
	"github.com/feliks/curio/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
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
		appLogger.Fatalf("Failed to initialize Qdrant repository: %v", err)
	}
	defer qdrantRepo.Close()

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}

	// Page snapshots are optional; nil disables them in the extractor.
	var snapshotStore storage.SnapshotStore
	if cfg.Snapshot.Enabled {
		s3Store, err := storage.NewS3Store(&storage.S3Config{
			Endpoint:  cfg.Snapshot.Endpoint,
			AccessKey: cfg.Snapshot.AccessKey,
			SecretKey: cfg.Snapshot.SecretKey,
			UseSSL:    cfg.Snapshot.UseSSL,
			Bucket:    cfg.Snapshot.Bucket,
			Region:    cfg.Snapshot.Region,
		})
		if err != nil {
			appLogger.Fatalf("Failed to initialize snapshot storage: %v", err)
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			appLogger.Fatalf("Failed to ensure snapshot bucket: %v", err)
		}
		snapshotStore = s3Store
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	extractor := extract.New(&extract.Config{
		MinTextChars:       cfg.Extract.MinTextChars,
		MaxTextChars:       cfg.Extract.MaxTextChars,
		CaptionBaseURL:     cfg.Extract.CaptionBaseURL,
		CaptionLangs:       cfg.Extract.CaptionLangs,
		CaptionMinInterval: cfg.Extract.CaptionMinInterval,
		MetadataBaseURL:    cfg.Extract.MetadataBaseURL,
		MetadataAPIKey:     cfg.Extract.MetadataAPIKey,
		CrawlerBaseURL:     cfg.Extract.CrawlerBaseURL,
		CrawlerAPIKey:      cfg.Extract.CrawlerAPIKey,
		HTTPTimeout:        cfg.Extract.HTTPTimeout,
	}, snapshotStore, appLogger)

	indexer := service.NewIndexer(contentRepo, qdrantRepo, embeddingService, appLogger, &service.IndexerConfig{
		IndexedChars: cfg.Search.IndexedChars,
	})

	worker := service.NewWorker(contentRepo, extractor, indexer, appLogger, &service.WorkerConfig{
		MaxRetries:     cfg.Ingest.MaxRetries,
		RetryBaseDelay: cfg.Ingest.RetryBaseDelay,
	})

	contentService := service.NewContentService(contentRepo, worker, indexer, snapshotStore, appLogger)

	searchService := service.NewSearchService(contentRepo, qdrantRepo, embeddingService, appLogger, &service.SearchConfig{
		MaxLimit:     cfg.Search.MaxLimit,
		ContextChars: cfg.Search.ContextChars,
		ExcerptChars: cfg.Search.ExcerptChars,
	})

	chatService := service.NewChatService(searchService, appLogger, &service.ChatConfig{
		Enabled: cfg.Chat.Enabled,
		Model:   cfg.Chat.Model,
		APIKey:  cfg.Chat.APIKey,
		BaseURL: cfg.Chat.BaseURL,
	})
	if chatService.IsEnabled() {
		appLogger.Infof("Chat enabled: model=%s", cfg.Chat.Model)
	}

	router := api.SetupRouter(contentService, searchService, chatService, indexer, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting API server: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}

	// Let queued retries finish persisting and vector writes drain.
	indexer.Flush()

	appLogger.Info("Server exited")
}
