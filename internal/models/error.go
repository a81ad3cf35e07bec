package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Auth core errors
	ErrIdentityExists     = errors.New("student id is already registered")
	ErrInvalidCredentials = errors.New("invalid student id or password")
	ErrLocked             = errors.New("too many failed attempts")
	ErrRotationFailed     = errors.New("session rotation failed")
	ErrSessionExpired     = errors.New("session expired")
	ErrNoSession          = errors.New("no active session")

	// Collaborator errors
	ErrKeyNotFound     = errors.New("assistant api key not configured")
	ErrRecoveryInvalid = errors.New("invalid or expired recovery code")
)

// LockedError carries the wait-time hint for a throttled identity
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrLocked.Error(), e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}
