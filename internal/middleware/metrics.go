package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cutroom-api/internal/service"
)

// unmatchedRoute labels 404s so raw URLs carrying delivery and comment IDs
// never become label values.
const unmatchedRoute = "unmatched"

// Metrics records latency and count per route template.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
