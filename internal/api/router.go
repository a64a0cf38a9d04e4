package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/tubebench/internal/api/handler"
	"github.com/timmy/tubebench/internal/api/middleware"
	"github.com/timmy/tubebench/internal/logger"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Admin   *handler.AdminHandler
	Channel *handler.ChannelHandler
	Health  *handler.HealthHandler
	// Metrics serves the Prometheus exposition; nil leaves /metrics unrouted.
	Metrics http.Handler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h Handlers, mode string, cors middleware.CORSConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cors))

	// Health check
	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		enrichment := v1.Group("/enrichment")
		enrichment.POST("/jobs", h.Admin.CreateJob)
		enrichment.GET("/jobs", h.Admin.ListJobs)
		enrichment.GET("/jobs/:id", h.Admin.GetJob)
		enrichment.GET("/jobs/:id/tasks", h.Admin.ListJobTasks)
		enrichment.GET("/tasks/:id", h.Admin.GetTask)
		enrichment.POST("/tasks/:id/retry", h.Admin.RetryTask)

		channels := v1.Group("/channels")
		channels.GET("/:id", h.Channel.GetChannel)
		channels.GET("/:id/baseline", h.Channel.GetBaseline)
		channels.GET("/:id/outliers", h.Channel.ListOutliers)
	}

	return r
}
