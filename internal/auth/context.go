// Package auth resolves the current user for a request and parses OAuth
// redirect callbacks.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrNoUser is returned when the context carries no authenticated user.
var ErrNoUser = errors.New("no authenticated user")

type contextKey struct{}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the current user id, or ErrNoUser.
func UserIDFromContext(ctx context.Context) (string, error) {
	id, _ := ctx.Value(contextKey{}).(string)
	if id == "" {
		return "", ErrNoUser
	}
	return id, nil
}

// UserID returns the current user id or "" when there is none.
func UserID(ctx context.Context) string {
	id, _ := UserIDFromContext(ctx)
	return id
}
