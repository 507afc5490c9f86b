package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/itvault-backend/internal/http/handlers"
	httpMW "github.com/yungbote/itvault-backend/internal/http/middleware"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	ServiceName    string

	AuthMiddleware *httpMW.AuthMiddleware
	SearchHandler  *httpH.SearchHandler
	AdminHandler   *httpH.AdminHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Search
		if cfg.SearchHandler != nil {
			protected.POST("/search", cfg.SearchHandler.Search)
			protected.GET("/search", cfg.SearchHandler.SearchQuery)
			protected.GET("/search/status", cfg.SearchHandler.Status)
		}
	}

	// Admin routes exist only behind auth.
	if cfg.AuthMiddleware != nil && cfg.AdminHandler != nil {
		admin := protected.Group("/")
		admin.Use(cfg.AuthMiddleware.RequirePlatformAdmin())
		admin.POST("/search/reindex", cfg.AdminHandler.Reindex)
		admin.PUT("/search/settings", cfg.AdminHandler.UpdateSettings)
	}

	return r
}
