package internal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/petalpost/petalpost/internal/auth"
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
)

// IssueAdminToken prints a bearer token for the admin console
func IssueAdminToken() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	userID := os.Getenv("USER_ID")
	if userID == "" {
		return ierr.NewError("USER_ID is required").
			WithHint("Pass -user-id with the operator's id").
			Mark(ierr.ErrValidation)
	}

	ttl := 12 * time.Hour
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if ttl, err = time.ParseDuration(v); err != nil {
			return ierr.WithError(err).
				WithHint("TOKEN_TTL must be a duration such as 8h").
				Mark(ierr.ErrValidation)
		}
	}

	roles := []string{cfg.Auth.AdminRole}
	if v := os.Getenv("ROLES"); v != "" {
		roles = strings.Split(v, ",")
	}

	token, err := auth.NewProvider(cfg).IssueToken(auth.Claims{UserID: userID, Roles: roles}, ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// GenerateSecret prints a random 256-bit hex secret, suitable for the auth
// secret, the cron key and webhook endpoint secrets
func GenerateSecret() error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return ierr.WithError(err).
			WithHint("Unable to generate key").
			Mark(ierr.ErrSystem)
	}

	fmt.Println(hex.EncodeToString(key))
	return nil
}
