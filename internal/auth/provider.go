package auth

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/config"
)

// Claims identify the operator behind an admin console call
type Claims struct {
	UserID string
	Roles  []string
}

// HasRole reports whether role was granted
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	IssueToken(claims Claims, ttl time.Duration) (string, error)
}

func NewProvider(cfg *config.Configuration) Provider {
	return NewJWTAuth(cfg)
}
