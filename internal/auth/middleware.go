package auth

import (
	"context"
	"net/http"

	"github.com/sakif/fluxgate/internal/model"
)

// contextKey is unexported so only this package can set or read these values.
type contextKey string

const (
	userKey  contextKey = "user"
	tokenKey contextKey = "token"
)

// SessionValidator resolves a token to its user. *SessionManager implements it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.User, bool)
}

// OptionalSession resolves the session cookie once per request and, when it
// is valid, stores the user and the token in the request context.
//
// It never rejects a request: the access gate decides per route what an
// anonymous caller may see. Handlers read the result with UserFromContext.
func OptionalSession(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := TokenFromRequest(r); token != "" {
				if user, ok := sessions.Validate(r.Context(), token); ok {
					ctx := context.WithValue(r.Context(), userKey, user)
					ctx = context.WithValue(ctx, tokenKey, token)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user, or (nil, false) for an
// anonymous request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// TokenFromContext returns the validated session token, or "" for an
// anonymous request.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
