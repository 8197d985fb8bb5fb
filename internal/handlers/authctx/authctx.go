package authctx

import (
	"context"

	"github.com/openbadger/openbadger/internal/models"
)

type ctxKey string

const authKey ctxKey = "auth"

// Create a new context with the authenticated principal
func New(ctx context.Context, a models.AuthContext) context.Context {
	return context.WithValue(ctx, authKey, a)
}

// Extract the principal from the context
func FromContext(ctx context.Context) (models.AuthContext, bool) {
	a, ok := ctx.Value(authKey).(models.AuthContext)
	return a, ok
}
