// Package contextkeys holds the request-scoped identity set by the auth middleware.
package contextkeys

import "context"

type contextKey string

const (
	UserID    contextKey = "userID"
	UserEmail contextKey = "userEmail"
	UserRole  contextKey = "userRole"
)

// WithIdentity returns ctx carrying the caller's id, email and role.
func WithIdentity(ctx context.Context, id, email, role string) context.Context {
	ctx = context.WithValue(ctx, UserID, id)
	ctx = context.WithValue(ctx, UserEmail, email)
	return context.WithValue(ctx, UserRole, role)
}

func str(ctx context.Context, k contextKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// UserIDFrom returns the authenticated user id, or "".
func UserIDFrom(ctx context.Context) string { return str(ctx, UserID) }

// UserEmailFrom returns the authenticated email, or "".
func UserEmailFrom(ctx context.Context) string { return str(ctx, UserEmail) }

// UserRoleFrom returns the authenticated role, or "".
func UserRoleFrom(ctx context.Context) string { return str(ctx, UserRole) }
