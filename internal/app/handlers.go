package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/itvault-backend/internal/http/handlers"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Search *httpH.SearchHandler
	Admin  *httpH.AdminHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Health: httpH.NewHealthHandler(checks),
		Search: httpH.NewSearchHandler(log, services.Search),
		Admin:  httpH.NewAdminHandler(log, services.Settings, services.Reindex),
	}
}
