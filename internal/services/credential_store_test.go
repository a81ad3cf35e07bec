package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/repositories"
	"github.com/BradenHooton/uniplus/internal/services"
	"github.com/BradenHooton/uniplus/internal/storage"
	pkgauth "github.com/BradenHooton/uniplus/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCredentialStore(t *testing.T, scheme string) (*services.CredentialStore, *repositories.AccountRepository) {
	t.Helper()
	repo := repositories.NewAccountRepository(storage.NewMemoryStorage())
	store, err := services.NewCredentialStore(repo, pkgauth.NewHasher(scheme), testLogger())
	require.NoError(t, err)
	return store, repo
}

func TestCredentialStore_RegisterAndVerify(t *testing.T) {
	for _, scheme := range []string{pkgauth.SchemeArgon2id, pkgauth.SchemeLegacy} {
		t.Run(scheme, func(t *testing.T) {
			ctx := context.Background()
			store, repo := newTestCredentialStore(t, scheme)

			profile := models.User{StudentID: "23CP001", Name: "A", Email: "a@bvm.edu"}
			account, err := store.Register(ctx, profile, "secret1")
			require.NoError(t, err)
			assert.NotEqual(t, "secret1", account.PasswordHash)

			stored, err := repo.GetByStudentID(ctx, "23CP001")
			require.NoError(t, err)
			assert.Equal(t, account.PasswordHash, stored.PasswordHash)

			user, err := store.Verify(ctx, "23CP001", "secret1")
			require.NoError(t, err)
			assert.Equal(t, profile, *user)

			_, err = store.Verify(ctx, "23CP001", "secret2")
			assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		})
	}
}

func TestCredentialStore_LegacyVerifierFormat(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestCredentialStore(t, pkgauth.SchemeArgon2id)

	// A record written before argon2id was the default
	require.NoError(t, repo.Create(ctx, &models.Account{
		StudentID:    "22EC010",
		PasswordHash: pkgauth.LegacyDigest("oldpass"),
		Profile:      models.User{StudentID: "22EC010"},
	}))

	_, err := store.Verify(ctx, "22EC010", "oldpass")
	assert.NoError(t, err)
}

func TestCredentialStore_Uniqueness(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCredentialStore(t, pkgauth.SchemeLegacy)

	_, err := store.Register(ctx, models.User{StudentID: "23CP001", Name: "A"}, "secret1")
	require.NoError(t, err)

	_, err = store.Register(ctx, models.User{StudentID: "23CP001", Name: "B", Email: "b@bvm.edu"}, "other")
	assert.ErrorIs(t, err, models.ErrIdentityExists)

	// First registration's password still verifies
	_, err = store.Verify(ctx, "23CP001", "secret1")
	assert.NoError(t, err)
}

func TestCredentialStore_UnknownIDIsInvalidCredentials(t *testing.T) {
	store, _ := newTestCredentialStore(t, pkgauth.SchemeLegacy)

	_, err := store.Verify(context.Background(), "nobody", "secret1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestCredentialStore_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCredentialStore(t, pkgauth.SchemeLegacy)

	_, err := store.Register(ctx, models.User{StudentID: "  "}, "secret1")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = store.Register(ctx, models.User{StudentID: "23CP001"}, "")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestCredentialStore_StorageErrorIsNotInvalidCredentials(t *testing.T) {
	boom := errors.New("disk gone")
	repo := &services.MockAccountRepository{
		GetByStudentIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return nil, boom
		},
	}
	store, err := services.NewCredentialStore(repo, pkgauth.NewHasher(pkgauth.SchemeLegacy), testLogger())
	require.NoError(t, err)

	_, err = store.Verify(context.Background(), "23CP001", "secret1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestCredentialStore_UpdateProfileAndSetPassword(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCredentialStore(t, pkgauth.SchemeLegacy)

	_, err := store.Register(ctx, models.User{StudentID: "23CP001", Name: "A"}, "secret1")
	require.NoError(t, err)

	require.NoError(t, store.UpdateProfile(ctx, models.User{StudentID: "23CP001", Name: "Renamed", Email: "r@bvm.edu"}))
	found, err := store.FindByEmail(ctx, "r@bvm.edu")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Profile.Name)

	require.NoError(t, store.SetPassword(ctx, "23CP001", "secret2"))
	_, err = store.Verify(ctx, "23CP001", "secret1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = store.Verify(ctx, "23CP001", "secret2")
	assert.NoError(t, err)

	assert.ErrorIs(t, store.UpdateProfile(ctx, models.User{StudentID: "missing"}), models.ErrNotFound)
	_, err = store.FindByEmail(ctx, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
