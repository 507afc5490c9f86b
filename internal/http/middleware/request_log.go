package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Probes log at debug; 4xx at warn;
// 5xx at error with any errors handlers attached through c.Error.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("middleware", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched:" + c.Request.URL.Path
		}
		status := c.Writer.Status()
		ctx := c.Request.Context()

		kv := append([]interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}, ctxutil.TraceKVs(ctx)...)
		if rd := ctxutil.GetRequestData(ctx); rd != nil {
			kv = append(kv, "user_id", rd.UserID.String(), "org_count", len(rd.OrganizationIDs), "platform_admin", rd.PlatformAdmin)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			kv = append(kv, "error", errs.String())
		}

		switch {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400:
			log.Warn("request rejected", kv...)
		case unobserved[c.FullPath()]:
			log.Debug("probe", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}
