package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/uniplus/internal/auth"
	"github.com/BradenHooton/uniplus/internal/metrics"
	"github.com/BradenHooton/uniplus/internal/models"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

// SessionRepository persists the single active-session slot
type SessionRepository interface {
	Get(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context) error
}

// SessionManager issues, rotates and tears down the active session. Writes to
// the slot are serialized by mu; the authority call in Rotate runs unlocked.
type SessionManager struct {
	repo      SessionRepository
	authority auth.TokenAuthority
	accessTTL time.Duration
	logger    *slog.Logger
	now       func() time.Time
	mu        sync.Mutex
}

func NewSessionManager(repo SessionRepository, authority auth.TokenAuthority, accessTTL time.Duration, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		repo:      repo,
		authority: authority,
		accessTTL: accessTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (m *SessionManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Now returns the manager's current time
func (m *SessionManager) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now()
}

// AccessTTL is the lifetime of every issued access token
func (m *SessionManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// Issue writes a new session for user, overwriting any prior one
func (m *SessionManager) Issue(ctx context.Context, user models.User) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := auth.NewTokenPair()
	session := &models.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    m.now().Add(m.accessTTL).UnixMilli(),
		User:         user.Clone(),
	}
	if err := m.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Current returns the persisted session without checking expiry
func (m *SessionManager) Current(ctx context.Context) (*models.Session, error) {
	return m.repo.Get(ctx)
}

// Rotate replaces session with a fresh token pair for the same user. The
// authority call must finish before session expires. If the slot was
// terminated or replaced meanwhile, the result is discarded and
// models.ErrNoSession is returned.
func (m *SessionManager) Rotate(ctx context.Context, session *models.Session) (*models.Session, error) {
	timeLeft := session.TimeLeft(m.Now())
	if timeLeft <= 0 {
		metrics.RotationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: session already expired", models.ErrRotationFailed)
	}

	rctx, cancel := context.WithTimeout(ctx, timeLeft)
	defer cancel()

	start := time.Now()
	pair, err := m.authority.Renew(rctx, session.RefreshToken)
	metrics.RotationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RotationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %w", models.ErrRotationFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNoSession) {
			metrics.RotationsTotal.WithLabelValues("discarded").Inc()
		}
		return nil, err
	}
	if current.AccessToken != session.AccessToken {
		metrics.RotationsTotal.WithLabelValues("discarded").Inc()
		return nil, models.ErrNoSession
	}

	now := m.now()
	if now.UnixMilli() >= session.ExpiresAt {
		metrics.RotationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: renewal completed after expiry", models.ErrRotationFailed)
	}

	expiresAt := now.Add(m.accessTTL).UnixMilli()
	if expiresAt <= session.ExpiresAt {
		expiresAt = session.ExpiresAt + 1
	}

	rotated := &models.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         current.User,
	}
	if err := m.repo.Save(ctx, rotated); err != nil {
		metrics.RotationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %w", models.ErrRotationFailed, err)
	}

	metrics.RotationsTotal.WithLabelValues("success").Inc()
	m.logger.Debug("session rotated",
		slog.String("student_id", pkglogger.SanitizedID(rotated.User.StudentID)),
		slog.Time("expires_at", rotated.ExpiresAtTime()))
	return rotated, nil
}

// ReplaceUser swaps the user snapshot of the active session, keeping its
// tokens and expiry. accessToken must still own the slot.
func (m *SessionManager) ReplaceUser(ctx context.Context, accessToken string, user models.User) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if current.AccessToken != accessToken {
		return nil, models.ErrNoSession
	}

	current.User = user.Clone()
	if err := m.repo.Save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Terminate empties the slot unconditionally
func (m *SessionManager) Terminate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.Delete(ctx)
}

// TerminateIf empties the slot only while accessToken still owns it
func (m *SessionManager) TerminateIf(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNoSession) {
			return nil
		}
		return err
	}
	if current.AccessToken != accessToken {
		return nil
	}
	return m.repo.Delete(ctx)
}
