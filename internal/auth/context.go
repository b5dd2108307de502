// internal/auth/context.go
//
// Authenticated-user helper.
//
// Usage
// -----
//     // Attach the user after the session is verified.
//     ctx = auth.WithUser(ctx, &auth.User{ID: 123, Username: "ann"})
//
//     // Downstream code (plugins, permission checks) retrieves it.
//     u := auth.FromContext(ctx)   // never nil; Anonymous when unset
//
// Notes
// -----
// • Plugins never mutate the User; treat it as read-only.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// User is the minimal identity the view layer needs for permission checks
// and object-permission assignment.
type User struct {
	ID       int64
	Username string
}

// Anonymous is returned when no user is attached.
var Anonymous = &User{}

// IsAuthenticated reports whether u refers to a stored user.
func (u *User) IsAuthenticated() bool { return u != nil && u.ID > 0 }

type userKey struct{}

// WithUser returns a new context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext extracts the user from ctx, or Anonymous.
func FromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(userKey{}).(*User); ok && u != nil {
		return u
	}
	return Anonymous
}
