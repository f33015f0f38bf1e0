package models

import "time"

// Session is a login session row, keyed by the opaque token issued by the
// external login flow.
type Session struct {
	Token     string `json:"token"`
	UserEmail string `json:"user_email"`
	// ExpiresAt is epoch seconds. A row past this instant is treated as
	// absent and purged on first sighting (lazy expiration).
	ExpiresAt int64 `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given instant
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}
