package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/config"
	handler "github.com/jeni5888/mayalens/internal/delivery/http"
	"github.com/jeni5888/mayalens/internal/events"
	"github.com/jeni5888/mayalens/internal/repository/postgres"
	redisrepo "github.com/jeni5888/mayalens/internal/repository/redis"
	"github.com/jeni5888/mayalens/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting MayaLens API Server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := goredis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	// Initialize RabbitMQ event publisher
	pub, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	// Initialize repositories
	jobStore := postgres.NewJobStore(dbPool)
	productStore := postgres.NewProductStore(dbPool)
	idemStore := redisrepo.NewIdempotencyStore(rdb)

	// Initialize use cases
	submitUC := usecase.NewSubmitJobUsecase(jobStore, productStore, idemStore, pub, cfg.Jobs.MaxAttempts, logger)
	getUC := usecase.NewGetJobUsecase(jobStore, logger)
	listUC := usecase.NewListJobsUsecase(jobStore, logger)
	cancelUC := usecase.NewCancelJobUsecase(jobStore, pub, logger)
	retryUC := usecase.NewRetryJobUsecase(jobStore, pub, cfg.Jobs.MaxAttempts, logger)

	// Purge deletes the stored asset from the same MinIO bucket the
	// worker publishes to.
	assetStore, err := newAssetStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	purgeUC := usecase.NewPurgeJobUsecase(jobStore, assetStore, logger)

	// Initialize router
	router := handler.NewRouter(handler.RouterDeps{
		Jobs: handler.NewJobHandler(submitUC, getUC, listUC, cancelUC, retryUC, purgeUC, logger),
		Health: handler.NewHealthHandler(
			func() error { return dbPool.Ping(context.Background()) },
			func() error { return rdb.Ping(context.Background()).Err() },
			logger,
		),
		Stream:          handler.NewWebSocketHandler(getUC, logger),
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
