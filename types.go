package irisauth

import (
	"context"
	"errors"
	"time"
)

// TokenTypeBearer is the token_type reported alongside every access token.
const TokenTypeBearer = "bearer"

// Tokens is the result of a successful Login or Refresh. AccessToken goes in
// the response body; RefreshToken belongs in the cookie built by
// Engine.RefreshCookie.
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	TokenType        string
}

// Principal is an authenticated caller.
type Principal struct {
	UserID    string
	ExpiresAt time.Time
}

// Credentials is what a CredentialSource returns for an email.
type Credentials struct {
	UserID       string
	PasswordHash string
	Active       bool
}

// ErrPrincipalNotFound is returned by a CredentialSource for unknown emails.
var ErrPrincipalNotFound = errors.New("principal not found")

// CredentialSource looks up password credentials by email. Implementations
// return ErrPrincipalNotFound, possibly wrapped, when no principal matches.
type CredentialSource interface {
	CredentialsByEmail(ctx context.Context, email string) (Credentials, error)
}

// CredentialSourceFunc adapts a function to CredentialSource.
type CredentialSourceFunc func(ctx context.Context, email string) (Credentials, error)

// CredentialsByEmail calls f.
func (f CredentialSourceFunc) CredentialsByEmail(ctx context.Context, email string) (Credentials, error) {
	return f(ctx, email)
}
