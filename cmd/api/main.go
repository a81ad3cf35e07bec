package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/uniplus/internal/app"
	"github.com/BradenHooton/uniplus/internal/config"
	"github.com/BradenHooton/uniplus/internal/handlers"
	middlewareCustom "github.com/BradenHooton/uniplus/internal/middleware"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/routes"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: app.ParseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("password_scheme", cfg.Auth.PasswordScheme))

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	portal, err := app.Build(startCtx, cfg, logger, func(session *models.Session, reason error) {
		logger.Warn("session cleared by heartbeat",
			slog.String("student_id", pkglogger.SanitizedID(session.User.StudentID)),
			slog.Any("reason", reason))
	})
	if err != nil {
		startCancel()
		logger.Error("failed to initialize portal", slog.Any("error", err))
		os.Exit(1)
	}
	defer portal.Close()

	// A session persisted by a previous run keeps being monitored
	if session, err := portal.Resume(startCtx); err != nil {
		logger.Error("failed to read persisted session", slog.Any("error", err))
	} else if session != nil {
		logger.Info("resumed persisted session", slog.String("student_id", pkglogger.SanitizedID(session.User.StudentID)))
	}
	startCancel()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(portal.Auth, portal.Recovery, logger)
	assistantHandler := handlers.NewAssistantHandler(portal.Assistant, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, cfg.Server.TrustedProxies))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, assistantHandler, portal.Auth,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.LoginRequestsPerMin})

	router.Get("/health", handlers.Health(cfg.Storage.Driver, time.Now(), portal.StorageCheck))
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Throttle sweep only matters when counts decay
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	if cfg.Auth.ThrottleDecay {
		go portal.Cleanup.Start(cleanupCtx)
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")
	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
}
