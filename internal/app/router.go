package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/itvault-backend/internal/http"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		ServiceName:    cfg.ServiceName,
		AuthMiddleware: middleware.Auth,
		SearchHandler:  handlers.Search,
		AdminHandler:   handlers.Admin,
		HealthHandler:  handlers.Health,
	})
}
