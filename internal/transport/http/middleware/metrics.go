package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/gin-gonic/gin"
)

// probes are polled constantly and would drown the API series.
var probes = map[string]bool{
	"/health/": true,
	"/readyz":  true,
}

// Metrics records latency and count per route template, method and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if probes[route] {
			return
		}
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		metrics.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	}
}
