package models

import "time"

// Session is the single active authenticated session of a client context.
// Tokens are opaque bearer strings; nothing is embedded or signed.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"` // access token expiry, ms since epoch
	User         User   `json:"user"`
}

// ExpiresAtTime returns ExpiresAt as a time.Time
func (s *Session) ExpiresAtTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// TimeLeft returns the remaining access token lifetime at now (negative once expired)
func (s *Session) TimeLeft(now time.Time) time.Duration {
	return time.Duration(s.ExpiresAt-now.UnixMilli()) * time.Millisecond
}

// Expired reports whether the access token has reached its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}
