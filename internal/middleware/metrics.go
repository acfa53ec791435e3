package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/service"
)

// Metrics records one observation per request: method, route template, status
// and latency. Unmatched routes fall back to the raw path.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
