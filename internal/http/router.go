package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/artforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/artforge-backend/internal/http/middleware"
	"github.com/yungbote/artforge-backend/internal/observability"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	// Served under /objects when set (local storage backend).
	ObjectsDir string

	GenerationHandler *httpH.GenerationHandler
	PreferenceHandler *httpH.PreferenceHandler
	RealtimeHandler   *httpH.RealtimeHandler
	HealthHandler     *httpH.HealthHandler
}

const eventsRoute = "/api/events"

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, eventsRoute))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if dir := strings.TrimSpace(cfg.ObjectsDir); dir != "" {
		r.Static("/objects", dir)
	}

	api := r.Group("/api")
	{
		if cfg.GenerationHandler != nil {
			api.POST("/generations", cfg.GenerationHandler.Start)
			api.GET("/generations/status", cfg.GenerationHandler.Status)
			api.GET("/generations/history", cfg.GenerationHandler.History)
			api.DELETE("/generations/history", cfg.GenerationHandler.ClearHistory)
			api.GET("/generations/:id", cfg.GenerationHandler.Get)
			api.POST("/generations/:id/stop", cfg.GenerationHandler.Stop)
			api.GET("/collection", cfg.GenerationHandler.Collection)
		}
		if cfg.PreferenceHandler != nil {
			api.GET("/preferences", cfg.PreferenceHandler.List)
		}
		if cfg.RealtimeHandler != nil {
			api.GET("/events", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
