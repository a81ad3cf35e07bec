package storage

import (
	"context"
	"errors"

	"github.com/BradenHooton/uniplus/internal/database"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage keeps keys in the kv_store table
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a PostgresStorage. The kv_store table comes from
// the embedded migrations (database.Migrate).
func NewPostgresStorage(db *database.DB) *PostgresStorage {
	return &PostgresStorage{pool: db.Pool}
}

func (p *PostgresStorage) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM kv_store WHERE key = $1`

	var value string
	err := p.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		err = database.MapPostgresError(err)
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (p *PostgresStorage) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	_, err := p.pool.Exec(ctx, query, key, value)
	return database.MapPostgresError(err)
}

func (p *PostgresStorage) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return database.MapPostgresError(err)
}
