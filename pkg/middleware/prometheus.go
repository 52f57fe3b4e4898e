package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/metrics"
)

// PrometheusMiddleware records request counts and latency per route template.
// Capability paths carry secrets, so the raw path is never used as a label.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		method := c.Request.Method
		metrics.RequestCounter.WithLabelValues(method, route).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
