package app

import (
	httpMW "github.com/yungbote/itvault-backend/internal/http/middleware"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	if services.Auth == nil {
		return Middleware{}
	}
	return Middleware{Auth: httpMW.NewAuthMiddleware(log, services.Auth)}
}
