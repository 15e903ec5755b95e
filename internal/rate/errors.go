package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is matched by every rejection the limiter returns.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter-store failures. Allow never returns it,
	// since counter-store errors fail open.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// LimitError carries the scope that rejected a call and how long until the
// current window expires.
type LimitError struct {
	Scope      Scope
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s (retry after %s)", e.Scope, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %s", e.Scope)
}

func (e *LimitError) Unwrap() error { return ErrRateLimited }
