package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/repositories"
	"github.com/BradenHooton/uniplus/internal/services"
	"github.com/BradenHooton/uniplus/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(authority auth.TokenAuthority) (*services.SessionManager, *services.FakeClock) {
	clock := services.NewFakeClock(time.UnixMilli(0))
	m := services.NewSessionManager(
		repositories.NewSessionRepository(storage.NewMemoryStorage()),
		authority,
		5*time.Minute,
		testLogger(),
	)
	m.SetClock(clock.Now)
	return m, clock
}

func TestSessionManager_IssueTTL(t *testing.T) {
	m, clock := newTestSessionManager(&services.MockTokenAuthority{})
	clock.Set(time.UnixMilli(1_700_000_000_000))

	session, err := m.Issue(context.Background(), models.User{StudentID: "23CP001"})
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000_000+300_000), session.ExpiresAt)
	assert.NotEqual(t, session.AccessToken, session.RefreshToken)

	current, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session, current)
}

func TestSessionManager_IssueOverwritesSlot(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(&services.MockTokenAuthority{})

	_, err := m.Issue(ctx, models.User{StudentID: "first"})
	require.NoError(t, err)
	second, err := m.Issue(ctx, models.User{StudentID: "second"})
	require.NoError(t, err)

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.AccessToken, current.AccessToken)
	assert.Equal(t, "second", current.User.StudentID)
}

func TestSessionManager_CurrentDoesNotValidateExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestSessionManager(&services.MockTokenAuthority{})

	_, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.True(t, current.Expired(clock.Now()))
}

func TestSessionManager_RotatePreservesUser(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestSessionManager(&services.MockTokenAuthority{})

	user := services.DemoProfile()
	session, err := m.Issue(ctx, user)
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	rotated, err := m.Rotate(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, session.User, rotated.User)
	assert.NotEqual(t, session.AccessToken, rotated.AccessToken)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)
	assert.Greater(t, rotated.ExpiresAt, session.ExpiresAt)
	assert.Equal(t, int64(240_000+300_000), rotated.ExpiresAt)

	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, rotated.AccessToken, current.AccessToken)
}

func TestSessionManager_RotateExpiryStrictlyGreater(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(&services.MockTokenAuthority{})

	session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
	require.NoError(t, err)

	// Same instant as issue: now+TTL equals the old expiry
	rotated, err := m.Rotate(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, session.ExpiresAt+1, rotated.ExpiresAt)
}

func TestSessionManager_RotateFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("authority error", func(t *testing.T) {
		boom := errors.New("authority offline")
		m, _ := newTestSessionManager(&services.MockTokenAuthority{
			RenewFunc: func(ctx context.Context, rt string) (auth.TokenPair, error) {
				return auth.TokenPair{}, boom
			},
		})
		session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
		require.NoError(t, err)

		_, err = m.Rotate(ctx, session)
		assert.ErrorIs(t, err, models.ErrRotationFailed)
		assert.ErrorIs(t, err, boom)

		current, err := m.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.AccessToken, current.AccessToken, "failed rotation leaves slot to the caller")
	})

	t.Run("already expired", func(t *testing.T) {
		m, clock := newTestSessionManager(&services.MockTokenAuthority{})
		session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)
		_, err = m.Rotate(ctx, session)
		assert.ErrorIs(t, err, models.ErrRotationFailed)
	})

	t.Run("completes after expiry", func(t *testing.T) {
		var clock *services.FakeClock
		m, c := newTestSessionManager(&services.MockTokenAuthority{
			RenewFunc: func(ctx context.Context, rt string) (auth.TokenPair, error) {
				clock.Advance(2 * time.Minute)
				return auth.NewTokenPair(), nil
			},
		})
		clock = c
		session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
		require.NoError(t, err)

		clock.Advance(4 * time.Minute)
		_, err = m.Rotate(ctx, session)
		assert.ErrorIs(t, err, models.ErrRotationFailed)
	})

	t.Run("authority deadline is the session expiry", func(t *testing.T) {
		m, clock := newTestSessionManager(&services.MockTokenAuthority{
			RenewFunc: func(ctx context.Context, rt string) (auth.TokenPair, error) {
				deadline, ok := ctx.Deadline()
				require.True(t, ok)
				assert.LessOrEqual(t, time.Until(deadline), 10*time.Millisecond)
				<-ctx.Done()
				return auth.TokenPair{}, ctx.Err()
			},
		})
		session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
		require.NoError(t, err)

		clock.Advance(5*time.Minute - 10*time.Millisecond)
		_, err = m.Rotate(ctx, session)
		assert.ErrorIs(t, err, models.ErrRotationFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSessionManager_RotateDiscardedWhenSlotChanges(t *testing.T) {
	ctx := context.Background()

	var m *services.SessionManager
	m, _ = newTestSessionManager(&services.MockTokenAuthority{
		RenewFunc: func(ctx context.Context, rt string) (auth.TokenPair, error) {
			// User logs out while the renewal is in flight
			require.NoError(t, m.Terminate(ctx))
			return auth.NewTokenPair(), nil
		},
	})

	session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
	require.NoError(t, err)

	_, err = m.Rotate(ctx, session)
	assert.ErrorIs(t, err, models.ErrNoSession)

	_, err = m.Current(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)
}

func TestSessionManager_TerminateAndTerminateIf(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(&services.MockTokenAuthority{})

	session, err := m.Issue(ctx, models.User{StudentID: "23CP001"})
	require.NoError(t, err)

	require.NoError(t, m.TerminateIf(ctx, "at_someone_else"))
	_, err = m.Current(ctx)
	require.NoError(t, err, "foreign token must not clear the slot")

	require.NoError(t, m.TerminateIf(ctx, session.AccessToken))
	_, err = m.Current(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)

	require.NoError(t, m.TerminateIf(ctx, session.AccessToken))
	require.NoError(t, m.Terminate(ctx))
}

func TestSessionManager_ReplaceUser(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(&services.MockTokenAuthority{})

	session, err := m.Issue(ctx, models.User{StudentID: "23CP001", Name: "A"})
	require.NoError(t, err)

	updated, err := m.ReplaceUser(ctx, session.AccessToken, models.User{StudentID: "23CP001", Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.User.Name)
	assert.Equal(t, session.AccessToken, updated.AccessToken)
	assert.Equal(t, session.ExpiresAt, updated.ExpiresAt)

	_, err = m.ReplaceUser(ctx, "at_stale", models.User{StudentID: "23CP001"})
	assert.ErrorIs(t, err, models.ErrNoSession)
}
