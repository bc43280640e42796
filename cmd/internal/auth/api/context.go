package authapi

import (
	"context"

	"reel/cmd/identity"
)

type contextKey string

const userKey contextKey = "reel.user"

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom extracts the authenticated user attached by the Authenticate
// middleware.
func UserFrom(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userKey).(identity.User)
	return u, ok
}
