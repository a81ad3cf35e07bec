package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/uniplus/internal/models"
	pkgauth "github.com/BradenHooton/uniplus/pkg/auth"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

// AccountRepository defines the persistence operations of the credential store
type AccountRepository interface {
	GetByStudentID(ctx context.Context, studentID string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
}

// CredentialStore holds identity records and verifies passwords against them
type CredentialStore struct {
	repo      AccountRepository
	hasher    *pkgauth.Hasher
	dummyHash string
	logger    *slog.Logger
}

func NewCredentialStore(repo AccountRepository, hasher *pkgauth.Hasher, logger *slog.Logger) (*CredentialStore, error) {
	// Compared against when the student ID is unknown so both failure paths
	// cost one KDF evaluation.
	dummy, err := hasher.Hash("uniplus-unknown-identity")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy verifier: %w", err)
	}

	return &CredentialStore{
		repo:      repo,
		hasher:    hasher,
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

// Register stores a new identity record. Uniqueness is on StudentID only.
func (c *CredentialStore) Register(ctx context.Context, profile models.User, rawPassword string) (*models.Account, error) {
	profile.StudentID = strings.TrimSpace(profile.StudentID)
	if profile.StudentID == "" {
		return nil, fmt.Errorf("%w: student id is required", models.ErrBadRequest)
	}

	hash, err := c.hasher.Hash(rawPassword)
	if err != nil {
		if errors.Is(err, pkgauth.ErrEmptyPassword) || errors.Is(err, pkgauth.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		StudentID:    profile.StudentID,
		Email:        profile.Email,
		PasswordHash: hash,
		Profile:      profile.Clone(),
	}
	if err := c.repo.Create(ctx, account); err != nil {
		if errors.Is(err, models.ErrIdentityExists) {
			return nil, models.ErrIdentityExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	c.logger.Info("account registered",
		slog.String("student_id", pkglogger.SanitizedID(account.StudentID)),
		slog.String("scheme", c.hasher.Scheme()))
	return account, nil
}

// Verify returns the stored profile when rawPassword matches. Unknown IDs and
// wrong passwords both yield models.ErrInvalidCredentials.
func (c *CredentialStore) Verify(ctx context.Context, studentID, rawPassword string) (*models.User, error) {
	account, err := c.repo.GetByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = pkgauth.ComparePassword(c.dummyHash, rawPassword)
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, pkgauth.ErrMalformedVerifier) {
			c.logger.Error("stored verifier is malformed",
				slog.String("student_id", pkglogger.SanitizedID(studentID)))
		}
		return nil, models.ErrInvalidCredentials
	}

	profile := account.Profile.Clone()
	return &profile, nil
}

// FindByEmail is used by password recovery only
func (c *CredentialStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, models.ErrNotFound
	}
	return c.repo.GetByEmail(ctx, email)
}

// UpdateProfile replaces the stored profile of user.StudentID
func (c *CredentialStore) UpdateProfile(ctx context.Context, user models.User) error {
	account, err := c.repo.GetByStudentID(ctx, user.StudentID)
	if err != nil {
		return err
	}
	account.Profile = user.Clone()
	account.Email = user.Email
	return c.repo.Update(ctx, account)
}

// SetPassword writes a fresh verifier in the configured scheme
func (c *CredentialStore) SetPassword(ctx context.Context, studentID, rawPassword string) error {
	account, err := c.repo.GetByStudentID(ctx, studentID)
	if err != nil {
		return err
	}

	hash, err := c.hasher.Hash(rawPassword)
	if err != nil {
		if errors.Is(err, pkgauth.ErrEmptyPassword) || errors.Is(err, pkgauth.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = hash
	return c.repo.Update(ctx, account)
}
