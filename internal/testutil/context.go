package testutil

import (
	"context"

	"github.com/petalpost/petalpost/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}

// AdminContext is a request context of an authenticated admin
func AdminContext(userID string) context.Context {
	ctx := SetupContext()
	ctx = types.SetUserID(ctx, userID)
	return types.SetRoles(ctx, []string{"admin"})
}
