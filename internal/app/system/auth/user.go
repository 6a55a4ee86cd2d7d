// Package auth authenticates API requests. Browser clients use a signed
// cookie session; API clients send a JWT bearer token. Either way the
// handlers find the same *SessionUser in the request context.
package auth

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const msgAuthRequired = "Full authentication is required to access this resource"

// SessionUser is the authenticated user for one request. It is rebuilt from
// the database on every request, so a disabled, deleted or expired demo
// account loses access at once.
type SessionUser struct {
	ID       string // hex ObjectID of the user document
	Name     string
	Username string
	Email    string
	Role     string
	IsDemo   bool
	Token    string // cookie session token; empty for bearer requests
}

// UserID parses ID, returning the zero ObjectID when it is malformed.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// UserFetcher loads the current state of a user. It returns nil when the
// user no longer exists or may not sign in.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the signed-in user, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser puts u in the request context. Tests use it to skip sign-in.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// RequireSignedIn answers 401 unless a user is in context.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			jsonutil.Unauthorized(w, msgAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 without a user and 403 when the user's role is
// not one of allowed. Roles compare case-insensitively.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	roles := make(map[string]bool, len(allowed))
	for _, role := range allowed {
		roles[normalize.Role(role)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			switch {
			case !ok:
				jsonutil.Unauthorized(w, msgAuthRequired)
			case !roles[normalize.Role(u.Role)]:
				jsonutil.Forbidden(w, "forbidden")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
