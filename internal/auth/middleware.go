package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/BradenHooton/uniplus/internal/models"
	pkghttp "github.com/BradenHooton/uniplus/pkg/http"
)

type contextKey string

const (
	// SessionContextKey is the key for storing the active session in context
	SessionContextKey contextKey = "session"
)

// SessionAuthenticator resolves the active session owned by an access token
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.Session, error)
}

// TokensEqual compares two opaque tokens in constant time
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequireSession rejects requests whose bearer token does not own the active
// session slot and injects the session into the request context.
func RequireSession(sessions SessionAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := pkghttp.BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			session, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrSessionExpired):
					pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session expired. Please sign in again.")
				case errors.Is(err, models.ErrNoSession):
					pkghttp.WriteUnauthorized(w, "invalid or inactive session")
				default:
					pkghttp.WriteInternalError(w, "failed to read session")
				}
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session injected by RequireSession
func SessionFromContext(ctx context.Context) *models.Session {
	session, _ := ctx.Value(SessionContextKey).(*models.Session)
	return session
}
