package middleware

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/types"
)

// SentryMiddleware traces the request and tags its scope with the request
// id so that reports line up with the access log
func SentryMiddleware(cfg *config.Configuration) gin.HandlersChain {
	if !cfg.Sentry.Enabled {
		return gin.HandlersChain{func(c *gin.Context) { c.Next() }}
	}

	return gin.HandlersChain{
		sentrygin.New(sentrygin.Options{
			Repanic:         true,
			WaitForDelivery: false,
			Timeout:         2 * time.Second,
		}),
		func(c *gin.Context) {
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.Scope().SetTag("request_id", types.GetRequestID(c.Request.Context()))
			}
			c.Next()
		},
	}
}
