package auth

import "time"

// User is an account provisioned at startup. Passwords are stored as
// argon2id hashes, never plaintext.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session binds one login to one device. RefreshDigest is the SHA-256 of
// the current refresh token; the plaintext token exists only in the
// response that issued it.
type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	RefreshDigest    string
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	LastRotatedAt    time.Time
}

// Expired reports whether the session's refresh window has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.RefreshExpiresAt)
}
