package session

import (
	"context"
	"fmt"
)

// Store is the persistence contract the session manager relies on.
type Store interface {
	// Upsert writes rec for rec.UserID, replacing any existing record.
	Upsert(ctx context.Context, rec Record) error
	// Rotate locks the user's record, passes it to fn and writes fn's result
	// in the same transaction.
	Rotate(ctx context.Context, userID string, fn RotateFunc) (Record, error)
	// Delete removes the user's record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
