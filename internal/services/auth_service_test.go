package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/models"
	"github.com/BradenHooton/uniplus/internal/repositories"
	"github.com/BradenHooton/uniplus/internal/services"
	"github.com/BradenHooton/uniplus/internal/storage"
	pkgauth "github.com/BradenHooton/uniplus/pkg/auth"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc       *services.AuthService
	sessions  *services.SessionManager
	throttle  *services.ThrottleService
	accounts  *repositories.AccountRepository
	monitor   *services.MockSessionMonitor
	authority *services.MockTokenAuthority
	clock     *services.FakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store := storage.NewMemoryStorage()
	accounts := repositories.NewAccountRepository(store)
	creds, err := services.NewCredentialStore(accounts, pkgauth.NewHasher(pkgauth.SchemeLegacy), testLogger())
	require.NoError(t, err)

	clock := services.NewFakeClock(time.UnixMilli(0))
	authority := &services.MockTokenAuthority{}
	sessions := services.NewSessionManager(repositories.NewSessionRepository(store), authority, 5*time.Minute, testLogger())
	sessions.SetClock(clock.Now)

	throttle := services.NewThrottleService(services.ThrottleConfig{MaxFailures: 5, Cooldown: 30 * time.Second}, testLogger())
	throttle.SetClock(clock.Now)

	monitor := &services.MockSessionMonitor{}
	svc := services.NewAuthService(creds, sessions, throttle, monitor, nil, 24*time.Hour, testLogger(), pkglogger.NewAuditLogger(testLogger()))

	return &authFixture{
		svc:       svc,
		sessions:  sessions,
		throttle:  throttle,
		accounts:  accounts,
		monitor:   monitor,
		authority: authority,
		clock:     clock,
	}
}

// Scenario A: signup returns a session for the new profile and login returns
// the same profile.
func TestAuthService_SignupThenLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.svc.Signup(ctx, models.User{StudentID: "23CP001", Name: "A"}, "secret1")
	require.NoError(t, err)
	assert.Equal(t, "23CP001", session.User.StudentID)
	assert.Equal(t, "A", session.User.Name)
	assert.Equal(t, int64(300_000), session.ExpiresAt)

	require.NoError(t, f.svc.Logout(ctx))

	loggedIn, err := f.svc.Login(ctx, "23CP001", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.User, loggedIn.User)

	begins, ends := f.monitor.Counts()
	assert.Equal(t, 2, begins)
	assert.Equal(t, 1, ends)
}

func TestAuthService_SignupDefaults(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.svc.Signup(context.Background(), models.User{StudentID: "23CP002"}, "secret1")
	require.NoError(t, err)

	u := session.User
	assert.Equal(t, "Anonymous Student", u.Name)
	assert.Equal(t, models.DepartmentComputerScience, u.Department)
	assert.Equal(t, "2023-27", u.Batch)
	assert.Equal(t, "2nd Year", u.Year)
	assert.Equal(t, "+91 9999999999", u.Phone)
	assert.Equal(t, []string{"e1", "e2"}, u.RegisteredEventIDs)
	require.NotNil(t, u.Attendance)
	assert.Equal(t, 32, u.Attendance.Academic.Attended)
	assert.Len(t, u.Attendance.Academic.Subjects, 3)
}

func TestAuthService_SignupGeneratesStudentID(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.svc.Signup(context.Background(), models.User{}, "secret1")
	require.NoError(t, err)
	assert.Regexp(t, `^BVM\d{1,4}$`, session.User.StudentID)
}

func TestAuthService_SignupDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.Signup(ctx, models.User{StudentID: "23CP001"}, "secret1")
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, models.User{StudentID: "23CP001", Name: "Other"}, "secret2")
	assert.ErrorIs(t, err, models.ErrIdentityExists)
}

// Scenario B: five failures within ten seconds lock the identity even for the
// correct password.
func TestAuthService_LockoutAfterFiveFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.Signup(ctx, models.User{StudentID: "23CP001"}, "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx))

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, "23CP001", "wrong")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		f.clock.Advance(2 * time.Second)
	}

	_, err = f.svc.Login(ctx, "23CP001", "secret1")
	assert.ErrorIs(t, err, models.ErrLocked)

	var locked *models.LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 28*time.Second, locked.RetryAfter)

	_, err = f.svc.Current(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession, "no session while locked")
}

func TestAuthService_LockedNeverChecksCredentials(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	for i := 0; i < 5; i++ {
		f.throttle.RecordFailure("23CP001")
	}

	// Unknown id, but Locked wins over InvalidCredentials
	_, err := f.svc.Login(ctx, "23CP001", "anything")
	assert.ErrorIs(t, err, models.ErrLocked)
	assert.Equal(t, 5, f.throttle.Failures("23CP001"), "locked attempt is not counted")
}

func TestAuthService_SuccessClearsFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.Signup(ctx, models.User{StudentID: "23CP001"}, "secret1")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, _ = f.svc.Login(ctx, "23CP001", "wrong")
	}
	assert.Equal(t, 4, f.throttle.Failures("23CP001"))

	_, err = f.svc.Login(ctx, "23CP001", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 0, f.throttle.Failures("23CP001"))
}

func TestAuthService_CurrentTerminatesExpired(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Current(ctx)
	assert.ErrorIs(t, err, models.ErrSessionExpired)

	_, err = f.sessions.Current(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)

	// The heartbeat is unbound along with the session
	begins, ends := f.monitor.Counts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, ends)
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	got, err := f.svc.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.StudentID, got.User.StudentID)

	_, err = f.svc.Authenticate(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, models.ErrNoSession)
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	rotated, err := f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.User, rotated.User)
	assert.Equal(t, int64(60_000+300_000), rotated.ExpiresAt)

	_, err = f.svc.Authenticate(ctx, session.AccessToken)
	assert.ErrorIs(t, err, models.ErrNoSession, "old access token no longer owns the slot")
}

func TestAuthService_RefreshFailureForcesLogout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.authority.RenewFunc = func(ctx context.Context, rt string) (auth.TokenPair, error) {
		return auth.TokenPair{}, errors.New("authority offline")
	}

	_, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx)
	assert.ErrorIs(t, err, models.ErrRotationFailed)

	_, err = f.svc.Current(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)
	_, ends := f.monitor.Counts()
	assert.Equal(t, 1, ends)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.svc.Signup(ctx, models.User{StudentID: "23CP001", Name: "A"}, "secret1")
	require.NoError(t, err)

	updatedUser := session.User.Clone()
	updatedUser.Name = "Renamed"
	updatedUser.JoinedClubIDs = []string{"c1"}

	updated, err := f.svc.UpdateProfile(ctx, session.AccessToken, updatedUser)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.User.Name)
	assert.Equal(t, session.ExpiresAt, updated.ExpiresAt)

	account, err := f.accounts.GetByStudentID(ctx, "23CP001")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, account.Profile.JoinedClubIDs)

	other := updatedUser
	other.StudentID = "23CP999"
	_, err = f.svc.UpdateProfile(ctx, session.AccessToken, other)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_UpdateProfileDemoSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	u := session.User
	u.Name = "Guest"
	updated, err := f.svc.UpdateProfile(ctx, session.AccessToken, u)
	require.NoError(t, err)
	assert.Equal(t, "Guest", updated.User.Name)
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx))
	require.NoError(t, f.svc.Logout(ctx))

	_, err = f.svc.Current(ctx)
	assert.ErrorIs(t, err, models.ErrNoSession)
}

func TestAuthService_Respond(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	session, err := f.svc.DemoAccess(ctx)
	require.NoError(t, err)

	f.clock.Advance(4 * time.Minute)
	resp := f.svc.Respond(session)
	assert.Equal(t, int64(60_000), resp.ExpiresInMs)
	assert.Equal(t, (24 * time.Hour).Milliseconds(), resp.RefreshExpiresIn)

	f.clock.Advance(time.Hour)
	assert.Equal(t, int64(0), f.svc.Respond(session).ExpiresInMs)
}

func TestAuthService_ConcurrentLoginsRespectLockout(t *testing.T) {
	ctx := context.Background()

	gate := make(chan struct{})
	var checks atomic.Int32
	repo := &services.MockAccountRepository{
		GetByStudentIDFunc: func(ctx context.Context, studentID string) (*models.Account, error) {
			checks.Add(1)
			<-gate
			return &models.Account{
				StudentID:    studentID,
				PasswordHash: pkgauth.LegacyDigest("secret1"),
				Profile:      models.User{StudentID: studentID},
			}, nil
		},
	}
	creds, err := services.NewCredentialStore(repo, pkgauth.NewHasher(pkgauth.SchemeLegacy), testLogger())
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	sessions := services.NewSessionManager(repositories.NewSessionRepository(store), &services.MockTokenAuthority{}, 5*time.Minute, testLogger())
	throttle := services.NewThrottleService(services.ThrottleConfig{MaxFailures: 5, Cooldown: 30 * time.Second}, testLogger())
	svc := services.NewAuthService(creds, sessions, throttle, &services.MockSessionMonitor{}, nil, 24*time.Hour, testLogger(), pkglogger.NewAuditLogger(testLogger()))

	const callers = 20
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := svc.Login(ctx, "23CP001", "wrong")
			results <- err
		}()
	}

	// Everyone beyond the failure budget is turned away while the first
	// checks are still blocked in the repository.
	locked := 0
	timeout := time.After(5 * time.Second)
	for locked < callers-5 {
		select {
		case err := <-results:
			require.ErrorIs(t, err, models.ErrLocked)
			locked++
		case <-timeout:
			close(gate)
			t.Fatalf("only %d of %d logins were locked out", locked, callers-5)
		}
	}

	close(gate)
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, <-results, models.ErrInvalidCredentials)
	}

	assert.Equal(t, int32(5), checks.Load())
	assert.Equal(t, 5, throttle.Failures("23CP001"))

	_, err = svc.Login(ctx, "23CP001", "secret1")
	assert.ErrorIs(t, err, models.ErrLocked)
}
