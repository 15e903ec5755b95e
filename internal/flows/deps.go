package flows

import (
	"context"
	"time"

	"github.com/AvanindraBose/irisauth/session"
)

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Minter issues a token pair for a subject.
type Minter func(userID string) (TokenPair, error)

// RefreshVerifier checks a refresh token statelessly and returns its subject.
type RefreshVerifier func(token string) (string, error)

// SessionStore is the slice of session.Store used by the flows.
type SessionStore interface {
	Upsert(ctx context.Context, rec session.Record) error
	Rotate(ctx context.Context, userID string, fn session.RotateFunc) (session.Record, error)
	Delete(ctx context.Context, userID string) error
}

// Deps groups flow dependency sets. The Engine builds this once and delegates
// request methods to the matching flow.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
}

func recordFor(userID string, pair TokenPair, fingerprint func(string) string, now time.Time) session.Record {
	return session.Record{
		UserID:      userID,
		Fingerprint: fingerprint(pair.RefreshToken),
		ExpiresAt:   pair.RefreshExpiresAt,
		CreatedAt:   now,
	}
}
