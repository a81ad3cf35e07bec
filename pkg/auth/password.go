package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Password schemes
const (
	SchemeArgon2id = "argon2id"
	SchemeLegacy   = "legacy"
)

const (
	// LegacySalt is the process-wide salt of the legacy verifier format.
	LegacySalt = "BVM_SALT_2025"

	MaxPasswordLen = 128

	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 2
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

var (
	ErrMismatchedPassword = errors.New("password does not match verifier")
	ErrMalformedVerifier  = errors.New("malformed password verifier")
	ErrEmptyPassword      = errors.New("password cannot be empty")
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d characters", MaxPasswordLen)
)

// Hasher produces verifiers in one scheme. ComparePassword accepts both schemes
// so records written under the legacy format keep working after a switch.
type Hasher struct {
	scheme string
}

func NewHasher(scheme string) *Hasher {
	if scheme != SchemeLegacy {
		scheme = SchemeArgon2id
	}
	return &Hasher{scheme: scheme}
}

func (h *Hasher) Scheme() string {
	return h.scheme
}

func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == SchemeLegacy {
		if err := checkLength(password); err != nil {
			return "", err
		}
		return LegacyDigest(password), nil
	}
	return HashPassword(password)
}

// HashPassword derives an argon2id verifier with a fresh per-record salt.
func HashPassword(password string) (string, error) {
	if err := checkLength(password); err != nil {
		return "", err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// LegacyDigest is the hex SHA-256 of password followed by LegacySalt.
func LegacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password + LegacySalt))
	return hex.EncodeToString(sum[:])
}

// ComparePassword checks password against a verifier of either scheme.
func ComparePassword(verifier, password string) error {
	if strings.HasPrefix(verifier, "$argon2id$") {
		return compareArgon2id(verifier, password)
	}

	if len(verifier) != sha256.Size*2 {
		return ErrMalformedVerifier
	}
	computed := LegacyDigest(password)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(verifier))) != 1 {
		return ErrMismatchedPassword
	}
	return nil
}

func compareArgon2id(verifier, password string) error {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(verifier, "$")
	if len(parts) != 6 {
		return ErrMalformedVerifier
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrMalformedVerifier
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return ErrMalformedVerifier
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrMalformedVerifier
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return ErrMalformedVerifier
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(computed, key) != 1 {
		return ErrMismatchedPassword
	}
	return nil
}

func checkLength(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}
