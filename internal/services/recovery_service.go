package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/BradenHooton/uniplus/internal/metrics"
	"github.com/BradenHooton/uniplus/internal/models"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

const (
	recoveryCodeDigits = 6
	// A ticket is burned after this many wrong codes
	maxRecoveryAttempts = 5
)

// RecoveryRepository stores pending recovery tickets
type RecoveryRepository interface {
	Get(ctx context.Context, studentID string) (*models.RecoveryTicket, error)
	Save(ctx context.Context, ticket *models.RecoveryTicket) error
	Delete(ctx context.Context, studentID string) error
}

// RecoveryService implements the "forgot password" flow: a one-time code is
// mailed to the registered address and exchanged for a new password.
type RecoveryService struct {
	// serializes ticket read-modify-write in ResetPassword
	mu sync.Mutex

	credentials *CredentialStore
	tickets     RecoveryRepository
	throttle    *ThrottleService
	mailer      Mailer
	ttl         time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewRecoveryService(
	credentials *CredentialStore,
	tickets RecoveryRepository,
	throttle *ThrottleService,
	mailer Mailer,
	ttl time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *RecoveryService {
	return &RecoveryService{
		credentials: credentials,
		tickets:     tickets,
		throttle:    throttle,
		mailer:      mailer,
		ttl:         ttl,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// SetClock replaces the time source
func (s *RecoveryService) SetClock(now func() time.Time) {
	s.now = now
}

// RequestRecovery mails a code when email belongs to an account. Unknown
// addresses succeed silently.
func (s *RecoveryService) RequestRecovery(ctx context.Context, email string) error {
	account, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.RecoveryRequestsTotal.WithLabelValues("unknown_email").Inc()
			s.logger.Info("recovery requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil
		}
		return fmt.Errorf("find account: %w", err)
	}

	code, err := generateRecoveryCode()
	if err != nil {
		return err
	}

	ticket := &models.RecoveryTicket{
		StudentID: account.StudentID,
		CodeHash:  hashRecoveryCode(code),
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return fmt.Errorf("save recovery ticket: %w", err)
	}

	if err := s.mailer.SendRecoveryCode(ctx, account.Email, account.StudentID, code); err != nil {
		_ = s.tickets.Delete(ctx, account.StudentID)
		return fmt.Errorf("send recovery code: %w", err)
	}

	metrics.RecoveryRequestsTotal.WithLabelValues("sent").Inc()
	s.auditLogger.LogAccountAction("recovery_requested", account.StudentID, "", nil)
	return nil
}

// ResetPassword exchanges a valid code for a new password and clears the
// throttle for the identity. After maxRecoveryAttempts wrong codes the ticket
// is removed and a new recovery must be requested.
func (s *RecoveryService) ResetPassword(ctx context.Context, studentID, code, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.tickets.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.reject(studentID, "no_ticket")
		}
		return fmt.Errorf("load recovery ticket: %w", err)
	}

	if !s.now().Before(ticket.ExpiresAt) {
		_ = s.tickets.Delete(ctx, studentID)
		return s.reject(studentID, "expired")
	}
	if subtle.ConstantTimeCompare([]byte(hashRecoveryCode(code)), []byte(ticket.CodeHash)) != 1 {
		ticket.Attempts++
		if ticket.Attempts >= maxRecoveryAttempts {
			if err := s.tickets.Delete(ctx, studentID); err != nil {
				return fmt.Errorf("remove recovery ticket: %w", err)
			}
			s.logger.Warn("recovery ticket burned after repeated wrong codes",
				slog.String("student_id", pkglogger.SanitizedID(studentID)),
				slog.Int("attempts", ticket.Attempts))
			return s.reject(studentID, "too_many_attempts")
		}
		if err := s.tickets.Save(ctx, ticket); err != nil {
			return fmt.Errorf("save recovery ticket: %w", err)
		}
		return s.reject(studentID, "code_mismatch")
	}

	if err := s.credentials.SetPassword(ctx, studentID, newPassword); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, studentID); err != nil {
		s.logger.Error("failed to remove used recovery ticket", slog.Any("error", err))
	}
	s.throttle.RecordSuccess(studentID)

	metrics.RecoveryRequestsTotal.WithLabelValues("reset").Inc()
	s.auditLogger.LogAccountAction("password_reset", studentID, "", nil)
	return nil
}

func (s *RecoveryService) reject(studentID, reason string) error {
	metrics.RecoveryRequestsTotal.WithLabelValues("rejected").Inc()
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "password_reset_failed",
		StudentID:     studentID,
		FailureReason: reason,
		Success:       false,
	})
	return models.ErrRecoveryInvalid
}

func generateRecoveryCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate recovery code: %w", err)
	}
	return fmt.Sprintf("%0*d", recoveryCodeDigits, n.Int64()), nil
}

func hashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
