package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/metrics"
	"github.com/BradenHooton/uniplus/internal/models"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

// SessionMonitor is bound to the authenticated context while a session is
// active (the heartbeat).
type SessionMonitor interface {
	Begin()
	End()
}

// AuthService runs the login, signup and logout control flow over the
// credential store, throttle and session manager.
type AuthService struct {
	credentials *CredentialStore
	sessions    *SessionManager
	throttle    *ThrottleService
	monitor     SessionMonitor
	timing      *auth.TimingDelay
	refreshTTL  time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(
	credentials *CredentialStore,
	sessions *SessionManager,
	throttle *ThrottleService,
	monitor SessionMonitor,
	timing *auth.TimingDelay,
	refreshTTL time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		credentials: credentials,
		sessions:    sessions,
		throttle:    throttle,
		monitor:     monitor,
		timing:      timing,
		refreshTTL:  refreshTTL,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// SessionResponse is the session as shown to the portal UI
type SessionResponse struct {
	AccessToken      string      `json:"accessToken"`
	RefreshToken     string      `json:"refreshToken"`
	ExpiresAt        int64       `json:"expiresAt"`
	ExpiresInMs      int64       `json:"expiresInMs"`
	RefreshExpiresIn int64       `json:"refreshExpiresInMs"`
	User             models.User `json:"user"`
}

// Respond renders session relative to the current time
func (s *AuthService) Respond(session *models.Session) *SessionResponse {
	left := session.TimeLeft(s.sessions.Now())
	if left < 0 {
		left = 0
	}
	return &SessionResponse{
		AccessToken:      session.AccessToken,
		RefreshToken:     session.RefreshToken,
		ExpiresAt:        session.ExpiresAt,
		ExpiresInMs:      left.Milliseconds(),
		RefreshExpiresIn: s.refreshTTL.Milliseconds(),
		User:             session.User,
	}
}

// Signup registers profile and opens a session for it
func (s *AuthService) Signup(ctx context.Context, profile models.User, password string) (*models.Session, error) {
	profile = ApplySignupDefaults(profile)

	account, err := s.credentials.Register(ctx, profile, password)
	if err != nil {
		reason := "error"
		if errors.Is(err, models.ErrIdentityExists) {
			reason = "identity_exists"
		} else if errors.Is(err, models.ErrBadRequest) {
			reason = "bad_request"
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "signup_failed",
			StudentID:     profile.StudentID,
			FailureReason: reason,
			Success:       false,
		})
		return nil, err
	}

	session, err := s.open(ctx, account.Profile, "signup")
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "signup",
		StudentID: account.StudentID,
		Success:   true,
	})
	return session, nil
}

// Login reserves a throttle slot, verifies the password and opens a session.
// A locked identity never reaches the credential check, and concurrent logins
// for one identity are admitted only up to its remaining failure budget.
func (s *AuthService) Login(ctx context.Context, studentID, password string) (*models.Session, error) {
	studentID = strings.TrimSpace(studentID)

	attempt, err := s.throttle.Reserve(studentID)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			StudentID:     studentID,
			FailureReason: "locked",
			Success:       false,
		})
		return nil, err
	}

	start := time.Now()
	user, err := s.credentials.Verify(ctx, studentID, password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			attempt.Fail()
			s.timing.PadFrom(start)
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				StudentID:     studentID,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrInvalidCredentials
		}
		attempt.Abandon()
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		s.logger.Error("credential check failed", slog.Any("error", err))
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	attempt.Succeed()

	session, err := s.open(ctx, *user, "login")
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		StudentID: studentID,
		Success:   true,
	})
	return session, nil
}

// DemoAccess opens a session for the built-in demo profile without touching
// the credential store.
func (s *AuthService) DemoAccess(ctx context.Context) (*models.Session, error) {
	session, err := s.open(ctx, DemoProfile(), "demo")
	if err != nil {
		return nil, err
	}
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "demo_access",
		StudentID: session.User.StudentID,
		Success:   true,
	})
	return session, nil
}

func (s *AuthService) open(ctx context.Context, user models.User, source string) (*models.Session, error) {
	session, err := s.sessions.Issue(ctx, user)
	if err != nil {
		s.logger.Error("failed to issue session", slog.String("source", source), slog.Any("error", err))
		return nil, fmt.Errorf("issue session: %w", err)
	}

	metrics.SessionsIssuedTotal.WithLabelValues(source).Inc()
	s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "session_issued",
		StudentID: user.StudentID,
		Success:   true,
		Metadata:  map[string]string{"source": source},
	})

	if s.monitor != nil {
		s.monitor.Begin()
	}
	return session, nil
}

// Current returns the active session. An expired session is cleared and
// reported as models.ErrSessionExpired; it is never returned as valid.
func (s *AuthService) Current(ctx context.Context) (*models.Session, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}

	if session.Expired(s.sessions.Now()) {
		if err := s.sessions.TerminateIf(ctx, session.AccessToken); err != nil {
			s.logger.Error("failed to clear expired session", slog.Any("error", err))
		}
		s.endMonitor()
		s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
			EventType:     "session_expired",
			StudentID:     session.User.StudentID,
			FailureReason: "expired",
			Success:       false,
		})
		return nil, models.ErrSessionExpired
	}
	return session, nil
}

// Authenticate resolves the session owning accessToken
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.Session, error) {
	session, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !auth.TokensEqual(session.AccessToken, accessToken) {
		return nil, models.ErrNoSession
	}
	return session, nil
}

// Refresh rotates the active session on request. A failed rotation is fatal
// for the session.
func (s *AuthService) Refresh(ctx context.Context) (*models.Session, error) {
	session, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	rotated, err := s.sessions.Rotate(ctx, session)
	if err != nil {
		if errors.Is(err, models.ErrRotationFailed) {
			if termErr := s.sessions.TerminateIf(ctx, session.AccessToken); termErr != nil {
				s.logger.Error("failed to clear session", slog.Any("error", termErr))
			}
			s.endMonitor()
			metrics.ForcedLogoutsTotal.WithLabelValues("rotation_failed").Inc()
		}
		s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
			EventType:     "session_rotation_failed",
			StudentID:     session.User.StudentID,
			FailureReason: err.Error(),
			Success:       false,
		})
		return nil, err
	}

	s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "session_rotated",
		StudentID: rotated.User.StudentID,
		Success:   true,
	})
	return rotated, nil
}

// UpdateProfile writes user through to the account record and the session
// snapshot. The student ID must match the session owned by accessToken.
func (s *AuthService) UpdateProfile(ctx context.Context, accessToken string, user models.User) (*models.Session, error) {
	session, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if user.StudentID != session.User.StudentID {
		return nil, fmt.Errorf("%w: student id cannot change", models.ErrBadRequest)
	}

	// Demo sessions have no account record
	if err := s.credentials.UpdateProfile(ctx, user); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("update account: %w", err)
	}

	updated, err := s.sessions.ReplaceUser(ctx, accessToken, user)
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAccountAction("profile_updated", user.StudentID, "", nil)
	return updated, nil
}

// Logout clears the session and unbinds the heartbeat. Idempotent.
func (s *AuthService) Logout(ctx context.Context) error {
	session, _ := s.sessions.Current(ctx)

	s.endMonitor()
	if err := s.sessions.Terminate(ctx); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}

	if session != nil {
		s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
			EventType: "logout",
			StudentID: session.User.StudentID,
			Success:   true,
		})
	}
	return nil
}

func (s *AuthService) endMonitor() {
	if s.monitor != nil {
		s.monitor.End()
	}
}

// ApplySignupDefaults fills the profile fields the signup form leaves empty
func ApplySignupDefaults(p models.User) models.User {
	if strings.TrimSpace(p.StudentID) == "" {
		p.StudentID = "BVM" + strconv.Itoa(rand.Intn(10000))
	}
	if p.Name == "" {
		p.Name = "Anonymous Student"
	}
	if p.Department == "" {
		p.Department = models.DepartmentComputerScience
	}
	if p.Batch == "" {
		p.Batch = "2023-27"
	}
	if p.Year == "" {
		p.Year = "2nd Year"
	}
	if p.Phone == "" {
		p.Phone = "+91 9999999999"
	}
	if p.RegisteredEventIDs == nil {
		p.RegisteredEventIDs = []string{"e1", "e2"}
	}
	if p.Attendance == nil {
		p.Attendance = defaultAttendance()
	}
	return p
}

func defaultAttendance() *models.Attendance {
	return &models.Attendance{
		Academic: models.AcademicAttendance{
			Attended: 32,
			Total:    42,
			Subjects: []models.AttendanceRecord{
				{Name: "Data Structures", Attended: 12, Total: 15, MissedDates: []string{"May 12", "May 14", "June 01"}},
				{Name: "Cloud Computing", Attended: 10, Total: 12, MissedDates: []string{"May 10", "May 20"}},
				{Name: "OS Concepts", Attended: 10, Total: 15, MissedDates: []string{"May 15", "May 22", "June 02", "June 05", "June 07"}},
			},
		},
		Events: models.EventAttendance{
			Attended:          1,
			Total:             2,
			MissedEventTitles: []string{"BVM Robo-Race 2025 (Registered)"},
		},
	}
}

// DemoProfile is the guest student used by DemoAccess
func DemoProfile() models.User {
	return ApplySignupDefaults(models.User{
		StudentID: "BVM-DEMO",
		Name:      "Demo Student",
		Email:     "demo@bvm.edu",
		BorrowedBooks: []models.BorrowedBook{
			{ID: "b1", Title: "Clean Code", Author: "Robert C. Martin", BorrowDate: "2025-05-10", DueDate: "2025-05-24", Category: "Computer Science", Status: "Borrowed"},
			{ID: "b2", Title: "Digital Signal Processing", Author: "John G. Proakis", BorrowDate: "2025-04-15", DueDate: "2025-05-01", Category: "Electronics", Status: "Overdue"},
		},
	})
}
