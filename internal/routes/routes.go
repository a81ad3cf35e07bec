package routes

import (
	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/handlers"
	"github.com/BradenHooton/uniplus/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the portal API on router
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	assistantHandler *handlers.AssistantHandler,
	sessions auth.SessionAuthenticator,
	credentialLimit middleware.RateLimitConfig,
) {
	if credentialLimit.RequestsPerMinute <= 0 {
		credentialLimit = middleware.DefaultAuthRateLimit()
	}
	limitByIP := middleware.RateLimitByIP(credentialLimit)

	// Public routes
	router.With(limitByIP).Post("/auth/signup", authHandler.Signup)
	router.With(limitByIP).Post("/auth/login", authHandler.Login)
	router.With(limitByIP).Post("/auth/recover", authHandler.Recover)
	router.With(limitByIP).Post("/auth/reset", authHandler.ResetPassword)
	router.Post("/auth/demo", authHandler.Demo)
	router.Get("/auth/session", authHandler.Session)

	// Bearer routes: the token must own the active session slot
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(sessions))
		r.Use(middleware.TagSession)

		r.Post("/auth/refresh", authHandler.Refresh)
		r.Put("/auth/profile", authHandler.UpdateProfile)
		r.Post("/auth/logout", authHandler.Logout)

		r.With(middleware.RateLimitBySession(middleware.RateLimitConfig{RequestsPerMinute: 30})).
			Post("/assistant/ask", assistantHandler.Ask)
	})
}
