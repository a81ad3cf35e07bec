package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/storage"
)

// SessionRepository persists the single active-session slot
type SessionRepository struct {
	store storage.Storage
}

func NewSessionRepository(store storage.Storage) *SessionRepository {
	return &SessionRepository{store: store}
}

// Get returns models.ErrNoSession when the slot is empty
func (r *SessionRepository) Get(ctx context.Context) (*models.Session, error) {
	raw, err := r.store.Get(ctx, storage.SessionKey)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Save overwrites whatever session occupies the slot
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.store.Set(ctx, storage.SessionKey, string(raw)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	if err := r.store.Remove(ctx, storage.SessionKey); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
