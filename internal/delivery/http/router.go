package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/delivery/http/middleware"
)

// RouterDeps carries everything the router needs to wire routes.
type RouterDeps struct {
	Jobs            *JobHandler
	Health          *HealthHandler
	Stream          *WebSocketHandler
	Logger          *zap.Logger
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting, no identity)
		v1.GET("/health", deps.Health.Health)

		// Jobs require a caller identity from the gateway
		jobs := v1.Group("/jobs")
		jobs.Use(middleware.Identity())
		jobs.Use(middleware.RateLimiter(deps.RateLimitPerMin))
		{
			jobs.POST("", middleware.BodySizeLimit(deps.MaxBodyBytes), deps.Jobs.Submit)
			jobs.GET("", deps.Jobs.List)
			jobs.GET("/:id", deps.Jobs.GetByID)
			jobs.DELETE("/:id", deps.Jobs.Cancel)
			jobs.POST("/:id/retry", deps.Jobs.Retry)

			// WebSocket for real-time updates
			jobs.GET("/:id/stream", deps.Stream.Stream)
		}
	}

	return router
}
