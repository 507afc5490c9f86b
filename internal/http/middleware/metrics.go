package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/itvault-backend/internal/observability"
)

// unobserved routes are probes and the scrape endpoint itself.
var unobserved = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
	"/metrics":     true,
}

// Metrics records per-route API latency. Unmatched paths share one label so
// scanners cannot blow up series cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if unobserved[route] {
			c.Next()
			return
		}
		m.ApiInflightInc()
		start := time.Now()
		c.Next()
		m.ApiInflightDec()

		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, observability.StatusLabel(c.Writer.Status()), time.Since(start))
	}
}
