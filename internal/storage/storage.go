// Package storage is the durable key/value surface behind the credential
// store and the session slot. Every backend stores opaque strings under fixed
// keys and reports a missing key as models.ErrNotFound.
package storage

import "context"

// Fixed keys shared by all backends
const (
	AccountsKey       = "uniplus_accounts"
	SessionKey        = "uniplus_session"
	RecoveryKeyPrefix = "uniplus_recovery:"
)

// Storage is a durable string key/value store
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RecoveryKey returns the key holding the recovery ticket of a student
func RecoveryKey(studentID string) string {
	return RecoveryKeyPrefix + studentID
}
