package irisauth

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email, a wrong
	// password or an inactive principal.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers bad signatures, wrong token kinds and malformed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token or its session record has expired.
	ErrExpiredToken = errors.New("expired token")
	// ErrSessionNotFound is returned by Refresh when the subject has no session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenReuseDetected is returned by Refresh when a signed, unexpired
	// refresh token does not match the stored session. It usually means the
	// token was already rotated out.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrRateLimited is returned by CheckRateLimit. It wraps the limiter's
	// *rate.LimitError, whose RetryAfter is exposed through RetryAfter.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable is returned when the session store fails. The
	// operation was rolled back and is safe to retry.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsUnauthorized reports whether err belongs to the authentication-failure
// group that callers must present identically.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTokenReuseDetected)
}
