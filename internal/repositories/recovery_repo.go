package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/storage"
)

type RecoveryRepository struct {
	store storage.Storage
}

func NewRecoveryRepository(store storage.Storage) *RecoveryRepository {
	return &RecoveryRepository{store: store}
}

// Get returns models.ErrNotFound when the student has no pending ticket
func (r *RecoveryRepository) Get(ctx context.Context, studentID string) (*models.RecoveryTicket, error) {
	raw, err := r.store.Get(ctx, storage.RecoveryKey(studentID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load recovery ticket: %w", err)
	}

	var ticket models.RecoveryTicket
	if err := json.Unmarshal([]byte(raw), &ticket); err != nil {
		return nil, fmt.Errorf("decode recovery ticket: %w", err)
	}
	return &ticket, nil
}

// Save replaces any earlier ticket of the same student
func (r *RecoveryRepository) Save(ctx context.Context, ticket *models.RecoveryTicket) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("encode recovery ticket: %w", err)
	}
	return r.store.Set(ctx, storage.RecoveryKey(ticket.StudentID), string(raw))
}

func (r *RecoveryRepository) Delete(ctx context.Context, studentID string) error {
	return r.store.Remove(ctx, storage.RecoveryKey(studentID))
}
