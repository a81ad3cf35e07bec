package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/uniplus/internal/auth"
	pkghttp "github.com/BradenHooton/uniplus/pkg/http"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger logs one line per request. Sensitive query strings are
// redacted and the student ID, when a session is bound, is masked.
// Forwarding headers are only trusted from trustedProxies.
func SecureLogger(logger *slog.Logger, trustedProxies []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// RequireSession runs further down the chain, so capture the
			// request it sees through a shared holder.
			holder := &sessionHolder{}
			ctx := context.WithValue(r.Context(), sessionHolderKey{}, holder)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path += "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}

			status := wrapped.Status()
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("client_ip", pkghttp.ClientIP(r, trustedProxies)),
			}
			if holder.studentID != "" {
				attrs = append(attrs, slog.String("student_id", pkglogger.SanitizedID(holder.studentID)))
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(context.Background(), level, "http_request", attrs...)
		})
	}
}

type sessionHolderKey struct{}

type sessionHolder struct {
	studentID string
}

// TagSession records the authenticated student for the access log. Mount it
// after auth.RequireSession.
func TagSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(sessionHolderKey{}).(*sessionHolder); ok {
			if session := auth.SessionFromContext(r.Context()); session != nil {
				holder.studentID = session.User.StudentID
			}
		}
		next.ServeHTTP(w, r)
	})
}
