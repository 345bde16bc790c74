package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/config"
	"github.com/jeni5888/mayalens/internal/dispatch"
	"github.com/jeni5888/mayalens/internal/events"
	"github.com/jeni5888/mayalens/internal/generation"
	"github.com/jeni5888/mayalens/internal/pool"
	"github.com/jeni5888/mayalens/internal/repository/postgres"
	"github.com/jeni5888/mayalens/internal/results"
	"github.com/jeni5888/mayalens/internal/storage"
	"github.com/jeni5888/mayalens/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting MayaLens Generation Worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to MinIO
	assetStore, err := storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	logger.Info("Connected to object storage", zap.String("bucket", cfg.Storage.Bucket))

	// Initialize RabbitMQ event publisher
	pub, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	// Initialize repository and generation client
	jobStore := postgres.NewJobStore(dbPool)
	genClient := generation.NewHTTPClient(generation.Options{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		CallTimeout: cfg.Provider.CallTimeout,
	}, logger)
	resultPublisher := results.NewPublisher(assetStore, logger)

	// Initialize use case
	processUC := usecase.NewProcessJobUsecase(
		jobStore,
		genClient,
		resultPublisher,
		pub,
		cfg.Worker.BackoffBase,
		cfg.Worker.BackoffCap,
		logger,
	)

	// Create buffered job channel
	jobsChan := make(chan uuid.UUID, cfg.Worker.PoolSize*2)

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, processUC, logger)
	workerPool.Start(ctx)

	// Start the polling dispatcher in a goroutine
	dispatcher := dispatch.New(
		jobStore,
		jobsChan,
		cfg.Worker.PollInterval,
		cfg.Worker.PoolSize*2,
		cfg.Worker.RunningLease,
		logger,
	)
	go dispatcher.Run(ctx)

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight jobs
	workerPool.Stop()

	logger.Info("Worker stopped")
}
