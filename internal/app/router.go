package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"minuteride/internal/domain"
	"minuteride/internal/handler"
	"minuteride/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	JobHandler    *handler.JobHandler
	TripHandler   *handler.TripHandler
	DriverHandler *handler.DriverHandler
	NotifyHandler *handler.NotifyHandler
	StreamHandler *handler.StreamHandler
	JWTSecret     string
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
	Logger        *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.Metrics())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("")
	authed.Use(middleware.Auth(deps.JWTSecret))
	authed.Use(middleware.NewRelicActor())
	authed.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	dispatcher := middleware.RequireRole(domain.RoleDispatcher)
	driver := middleware.RequireRole(domain.RoleDriver)

	// API v1 routes.
	v1 := authed.Group("/v1")
	{
		// Job routes.
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", deps.JobHandler.List)
			jobs.GET("/:id", deps.JobHandler.Get)
			jobs.POST("", dispatcher, deps.JobHandler.Create)
			jobs.POST("/:id/assign", dispatcher, deps.JobHandler.Assign)
			jobs.POST("/:id/status", dispatcher, deps.JobHandler.SetStatus)
			jobs.POST("/:id/claim", driver, deps.JobHandler.Claim)
			jobs.POST("/:id/start", driver, deps.TripHandler.Start)
			jobs.POST("/:id/end", driver, deps.TripHandler.End)
		}

		// Trip routes.
		trips := v1.Group("/trips", driver)
		{
			trips.GET("/active", deps.TripHandler.Active)
			trips.POST("/active/positions", deps.TripHandler.RecordPosition)
		}

		// Driver directory.
		drivers := v1.Group("/drivers", dispatcher)
		{
			drivers.GET("", deps.DriverHandler.List)
			drivers.GET("/positions", deps.DriverHandler.Positions)
		}

		v1.GET("/stream", deps.StreamHandler.Connect)
	}

	// Legacy notify trigger used by the dispatcher dashboard.
	authed.POST("/api/notify-drivers-new-job", dispatcher, deps.NotifyHandler.NotifyDriversNewJob)

	return router
}

// requestLogger logs one structured line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", attrs...)
		case c.FullPath() == "/health":
			logger.Debug("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}
