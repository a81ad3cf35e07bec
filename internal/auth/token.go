package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AccessTokenPrefix  = "at_"
	RefreshTokenPrefix = "rt_"
)

// TokenPair is a freshly minted access/refresh pair. Both values are opaque
// bearer strings with no embedded claims.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// NewTokenPair draws two independent random identifiers.
func NewTokenPair() TokenPair {
	return TokenPair{
		AccessToken:  AccessTokenPrefix + uuid.NewString(),
		RefreshToken: RefreshTokenPrefix + uuid.NewString(),
	}
}

// TokenAuthority is the token-issuing boundary used for rotation. A real
// backend can replace LocalAuthority without touching the session manager.
type TokenAuthority interface {
	Renew(ctx context.Context, refreshToken string) (TokenPair, error)
}

// LocalAuthority mints tokens in-process after a simulated round-trip.
type LocalAuthority struct {
	latency time.Duration
}

func NewLocalAuthority(latency time.Duration) *LocalAuthority {
	return &LocalAuthority{latency: latency}
}

func (a *LocalAuthority) Renew(ctx context.Context, _ string) (TokenPair, error) {
	if a.latency <= 0 {
		if err := ctx.Err(); err != nil {
			return TokenPair{}, err
		}
		return NewTokenPair(), nil
	}

	timer := time.NewTimer(a.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	case <-timer.C:
		return NewTokenPair(), nil
	}
}
