package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStorage returns err from every call
type failingStorage struct{ err error }

func (f failingStorage) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStorage) Set(context.Context, string, string) error   { return f.err }
func (f failingStorage) Remove(context.Context, string) error        { return f.err }

func TestAccountRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(storage.NewMemoryStorage())

	acc := &models.Account{
		StudentID:    "23CP001",
		Email:        "a@bvm.edu",
		PasswordHash: "h",
		Profile:      models.User{StudentID: "23CP001", Name: "A"},
	}
	require.NoError(t, repo.Create(ctx, acc))

	got, err := repo.GetByStudentID(ctx, "23CP001")
	require.NoError(t, err)
	assert.Equal(t, *acc, *got)

	got, err = repo.GetByEmail(ctx, "A@BVM.EDU")
	require.NoError(t, err)
	assert.Equal(t, "23CP001", got.StudentID)

	_, err = repo.GetByStudentID(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.GetByEmail(ctx, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountRepository_DuplicateStudentID(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(storage.NewMemoryStorage())

	require.NoError(t, repo.Create(ctx, &models.Account{StudentID: "23CP001", Email: "a@bvm.edu"}))
	err := repo.Create(ctx, &models.Account{StudentID: "23CP001", Email: "different@bvm.edu"})
	assert.ErrorIs(t, err, models.ErrIdentityExists)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccountRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(storage.NewMemoryStorage())

	require.NoError(t, repo.Create(ctx, &models.Account{StudentID: "a"}))
	require.NoError(t, repo.Create(ctx, &models.Account{StudentID: "b"}))

	require.NoError(t, repo.Update(ctx, &models.Account{StudentID: "b", PasswordHash: "new"}))
	got, err := repo.GetByStudentID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)

	assert.ErrorIs(t, repo.Update(ctx, &models.Account{StudentID: "c"}), models.ErrNotFound)
}

func TestAccountRepository_StorageErrors(t *testing.T) {
	boom := errors.New("disk gone")
	repo := NewAccountRepository(failingStorage{err: boom})

	_, err := repo.GetByStudentID(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, repo.Create(context.Background(), &models.Account{StudentID: "x"}), boom)
}

func TestAccountRepository_CorruptDocument(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Set(context.Background(), storage.AccountsKey, "{not json"))

	_, err := NewAccountRepository(store).List(context.Background())
	assert.ErrorContains(t, err, "decode accounts")
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(storage.NewMemoryStorage())

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)

	s := &models.Session{AccessToken: "at_1", RefreshToken: "rt_1", ExpiresAt: 300_000, User: models.User{StudentID: "23CP001"}}
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, *s, *got)

	s2 := &models.Session{AccessToken: "at_2", ExpiresAt: 600_000}
	require.NoError(t, repo.Save(ctx, s2))
	got, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at_2", got.AccessToken)

	require.NoError(t, repo.Delete(ctx))
	require.NoError(t, repo.Delete(ctx))
	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)
}

func TestRecoveryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRecoveryRepository(storage.NewMemoryStorage())

	_, err := repo.Get(ctx, "23CP001")
	assert.ErrorIs(t, err, models.ErrNotFound)

	ticket := &models.RecoveryTicket{StudentID: "23CP001", CodeHash: "abc", ExpiresAt: time.Unix(1000, 0).UTC()}
	require.NoError(t, repo.Save(ctx, ticket))

	got, err := repo.Get(ctx, "23CP001")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.CodeHash)
	assert.True(t, ticket.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, repo.Delete(ctx, "23CP001"))
	_, err = repo.Get(ctx, "23CP001")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
