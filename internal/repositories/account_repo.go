package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/storage"
)

// AccountRepository keeps every identity record as one JSON array under
// storage.AccountsKey. Writes are read-modify-write under a mutex.
type AccountRepository struct {
	store storage.Storage
	mu    sync.Mutex
}

func NewAccountRepository(store storage.Storage) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) load(ctx context.Context) ([]models.Account, error) {
	raw, err := r.store.Get(ctx, storage.AccountsKey)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	var accounts []models.Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) save(ctx context.Context, accounts []models.Account) error {
	raw, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if err := r.store.Set(ctx, storage.AccountsKey, string(raw)); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}

// List returns every account in registration order
func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// GetByStudentID returns models.ErrNotFound if no account has that ID
func (r *AccountRepository) GetByStudentID(ctx context.Context, studentID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].StudentID == studentID {
			return &accounts[i], nil
		}
	}
	return nil, models.ErrNotFound
}

// GetByEmail matches case-insensitively and returns the first registration
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Email != "" && strings.EqualFold(accounts[i].Email, email) {
			return &accounts[i], nil
		}
	}
	return nil, models.ErrNotFound
}

// Create appends a record; a duplicate StudentID yields models.ErrIdentityExists
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range accounts {
		if existing.StudentID == account.StudentID {
			return models.ErrIdentityExists
		}
	}
	return r.save(ctx, append(accounts, *account))
}

// Update replaces the record with the same StudentID
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].StudentID == account.StudentID {
			accounts[i] = *account
			return r.save(ctx, accounts)
		}
	}
	return models.ErrNotFound
}
