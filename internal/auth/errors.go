package auth

import "errors"

var (
	// ErrInvalidRequest means a required input was missing or empty.
	ErrInvalidRequest = errors.New("missing or empty required field")

	// ErrAuthenticationFailed covers both unknown username and wrong
	// password; callers get one constant surface error for either.
	ErrAuthenticationFailed = errors.New("invalid credentials")

	// ErrUnknownSession covers logged-out, expired-and-reaped, and
	// never-existed sessions identically.
	ErrUnknownSession = errors.New("unknown session")

	// ErrRefreshExpired is terminal: the session has been revoked and the
	// user must log in again.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrTokenReuseDetected is the theft signal: an old or wrong-device
	// refresh token was presented and the session has been revoked.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	// ErrInvalidToken covers malformed, badly signed, and expired access
	// tokens without distinguishing them to the caller.
	ErrInvalidToken = errors.New("invalid or expired access token")

	// ErrUserExists is returned when provisioning a username that is taken.
	ErrUserExists = errors.New("user already exists")
)
