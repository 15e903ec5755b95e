package session

import (
	"errors"
	"time"
)

// ErrUnavailable wraps every failure of the backing store: connection errors,
// lock or statement timeouts, and failed commits.
var ErrUnavailable = errors.New("session store unavailable")

// Record is the durable session state for one user.
type Record struct {
	UserID      string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// RotateFunc receives the locked record, or nil when the user has none, and
// returns the record that replaces it. A non-nil error rolls the rotation back
// and is returned unchanged to the caller of Rotate.
type RotateFunc func(current *Record) (Record, error)
