package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// =============================================================================
// Session
// =============================================================================

// DefaultSessionTTL keeps a login valid for thirty days, matching the old
// remember-me behavior.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Session is a bearer login token. Tokens are random and stored server-side
// so they can be revoked on logout.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession mints a session for a user with the given lifetime.
func NewSession(username string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		Token:     generateToken(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the session is past its lifetime.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func generateToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("session token entropy unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
