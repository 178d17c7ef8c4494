package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/metrics"
)

// MetricsMiddleware records the latency and status of every request
func MetricsMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		collector.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
