// Package app wires the portal core from configuration. Both the HTTP server
// and the terminal client build their dependencies through Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/uniplus/internal/assistant"
	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/background"
	"github.com/BradenHooton/uniplus/internal/config"
	"github.com/BradenHooton/uniplus/internal/database"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/repositories"
	"github.com/BradenHooton/uniplus/internal/services"
	"github.com/BradenHooton/uniplus/internal/storage"
	pkgauth "github.com/BradenHooton/uniplus/pkg/auth"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

type App struct {
	Config    *config.Config
	Storage   storage.Storage
	Sessions  *services.SessionManager
	Throttle  *services.ThrottleService
	Heartbeat *background.Heartbeat
	Cleanup   *background.CleanupManager
	Auth      *services.AuthService
	Recovery  *services.RecoveryService
	Assistant *assistant.Service

	// StorageCheck pings the storage backend; nil for in-process backends
	StorageCheck func(ctx context.Context) error

	closers []func()
}

// Build opens the configured storage and assembles the services on top of it.
// onForcedLogout, if set, is called after the heartbeat clears a session.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, onForcedLogout background.ForcedLogoutFunc) (*App, error) {
	a := &App{Config: cfg}

	store, err := a.openStorage(ctx, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Storage = store

	auditLogger := pkglogger.NewAuditLogger(logger)

	credentials, err := services.NewCredentialStore(
		repositories.NewAccountRepository(store),
		pkgauth.NewHasher(cfg.Auth.PasswordScheme),
		logger,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init credential store: %w", err)
	}

	a.Sessions = services.NewSessionManager(
		repositories.NewSessionRepository(store),
		auth.NewLocalAuthority(cfg.Auth.RotationLatency),
		cfg.Auth.AccessTokenTTL,
		logger,
	)

	a.Throttle = services.NewThrottleService(services.ThrottleConfig{
		MaxFailures: cfg.Auth.ThrottleMaxFailures,
		Cooldown:    cfg.Auth.ThrottleCooldown,
		Decay:       cfg.Auth.ThrottleDecay,
	}, logger)
	a.Cleanup = background.NewCleanupManager(a.Throttle, logger, cfg.Auth.ThrottleCooldown)

	a.Heartbeat = background.NewHeartbeat(a.Sessions, background.HeartbeatConfig{
		Interval:   cfg.Auth.HeartbeatInterval,
		WarnWindow: cfg.Auth.WarnWindow,
	}, logger, onForcedLogout)

	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	a.Auth = services.NewAuthService(credentials, a.Sessions, a.Throttle, a.Heartbeat, timing,
		cfg.Auth.RefreshTokenTTL, logger, auditLogger)

	mailer, err := newMailer(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Recovery = services.NewRecoveryService(credentials, repositories.NewRecoveryRepository(store),
		a.Throttle, mailer, cfg.Auth.RecoveryTTL, logger, auditLogger)

	a.Assistant, err = assistant.NewService(ctx, cfg.Assistant, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init assistant: %w", err)
	}

	return a, nil
}

// Resume binds the heartbeat when a session survived a restart
func (a *App) Resume(ctx context.Context) (*models.Session, error) {
	session, err := a.Sessions.Current(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}
	a.Heartbeat.Begin()
	return session, nil
}

// Close stops the heartbeat and releases storage connections
func (a *App) Close() {
	if a.Heartbeat != nil {
		a.Heartbeat.End()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStorage(ctx context.Context, logger *slog.Logger) (storage.Storage, error) {
	cfg := a.Config

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return storage.NewMemoryStorage(), nil

	case config.StorageFile:
		return storage.NewFileStorage(cfg.Storage.Path)

	case config.StorageRedis:
		client, err := storage.ConnectRedis(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.StorageCheck = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return storage.NewRedisStorage(client, cfg.Redis.KeyPrefix), nil

	case config.StoragePostgres:
		if err := database.Migrate(ctx, cfg.Database.DSN()); err != nil {
			return nil, err
		}
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.StorageCheck = db.HealthCheck
		return storage.NewPostgresStorage(db), nil

	case config.StorageMongo:
		client, db, err := storage.ConnectMongo(ctx, storage.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		a.StorageCheck = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return storage.NewMongoStorage(db), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newMailer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.Mailer, error) {
	if strings.EqualFold(cfg.Email.Driver, "ses") {
		mailer, err := services.NewSESMailer(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Auth.RecoveryTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("init SES mailer: %w", err)
		}
		return mailer, nil
	}
	return services.NewLogMailer(logger), nil
}

// ParseLogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
