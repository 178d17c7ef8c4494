package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// PermissionMiddleware handles role checks on authenticated routes
type PermissionMiddleware struct {
	logger *logger.Logger
}

// NewPermissionMiddleware creates a new permission middleware instance
func NewPermissionMiddleware(logger *logger.Logger) *PermissionMiddleware {
	return &PermissionMiddleware{
		logger: logger,
	}
}

// RequireRole returns a middleware that lets only callers holding role through.
// It must run after the authentication middleware.
func (pm *PermissionMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		roles := types.GetRoles(ctx)

		if !lo.Contains(roles, role) {
			pm.logger.Infow("permission denied",
				"user_id", types.GetUserID(ctx),
				"roles", roles,
				"required", role,
				"path", c.Request.URL.Path,
			)

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": fmt.Sprintf("The %s role is required", role),
			})
			return
		}

		c.Next()
	}
}
