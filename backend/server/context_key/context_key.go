package contextKey

import (
	"context"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
)

type key string

const (
	// UserIDKey holds the id of the authenticated user.
	UserIDKey key = "userID"
	// RoleKey holds the models.Role of the authenticated user.
	RoleKey key = "role"
	// JwtErrorKey holds the error of a bearer token that failed verification.
	JwtErrorKey key = "jwtError"
)

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(ctx context.Context) models.Role {
	role, _ := ctx.Value(RoleKey).(models.Role)
	return role
}

// JwtError returns the verification error of the request's bearer token, if any.
func JwtError(ctx context.Context) error {
	err, _ := ctx.Value(JwtErrorKey).(error)
	return err
}

// WithUser returns a copy of ctx carrying the user's id and role.
func WithUser(ctx context.Context, userID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, RoleKey, role)
}
