package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/uniplus/internal/config"
	"github.com/BradenHooton/uniplus/internal/database"
)

const (
	testDBName     = "uniplus"
	testDBUser     = "postgres"
	testDBPassword = "postgres"
)

// TestDB manages the PostgreSQL testcontainer behind the postgres storage driver
type TestDB struct {
	Container *postgres.PostgresContainer
	Config    config.DatabaseConfig
	DB        *database.DB
}

// SetupTestDatabase starts PostgreSQL, applies the embedded migrations and
// opens a pool the same way the server does.
func SetupTestDatabase(ctx context.Context, logger *slog.Logger) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            testDBUser,
		Password:        testDBPassword,
		Name:            testDBName,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: time.Minute,
	}

	if err := database.Migrate(ctx, cfg.DSN()); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	db, err := database.NewConnection(ctx, &cfg, logger)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{Container: container, Config: cfg, DB: db}, nil
}

// Teardown closes the pool and stops the container
func (tdb *TestDB) Teardown(ctx context.Context) error {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
	if tdb.Container != nil {
		return tdb.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables empties the key/value table between tests
func (tdb *TestDB) CleanupTables(ctx context.Context) error {
	if _, err := tdb.DB.Pool.Exec(ctx, "TRUNCATE TABLE kv_store"); err != nil {
		return fmt.Errorf("failed to truncate kv_store: %w", err)
	}
	return nil
}
