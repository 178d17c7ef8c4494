package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/logger"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware sheds load above rps with a token bucket shared by
// every caller of the route. A non-positive rps disables the limit.
func RateLimitMiddleware(rps float64, burst int, logger *logger.Logger) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			logger.Warnw("rate limit exceeded", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			// 503 makes the gateway redeliver later
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
