package flows

import (
	"context"
	"errors"
	"time"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUnknownPrincipal
	LoginFailureInactive
	LoginFailureBadPassword
	LoginFailureLookup
	LoginFailureHasher
	LoginFailureMint
	LoginFailureStore
)

// LoginCredentials is the flow-local view of a principal's stored password.
type LoginCredentials struct {
	UserID       string
	PasswordHash string
	Active       bool
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Pair    TokenPair
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	LookupCredentials func(ctx context.Context, email string) (LoginCredentials, error)
	// NotFound is the sentinel LookupCredentials returns for unknown emails.
	NotFound       error
	VerifyPassword func(ctx context.Context, plaintext, hash string) (bool, error)
	BurnDummy      func(ctx context.Context, plaintext string) error
	Mint           Minter
	Fingerprint    func(string) string
	Now            func() time.Time
	SessionStore   SessionStore
}

// RunLogin verifies the password and replaces the principal's session with a
// fresh one.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	creds, err := deps.LookupCredentials(ctx, email)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			// Spend the same bcrypt time as a real check so response latency
			// does not reveal whether the email exists.
			if deps.BurnDummy != nil {
				_ = deps.BurnDummy(ctx, password)
			}
			return LoginResult{Failure: LoginFailureUnknownPrincipal, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(ctx, password, creds.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureHasher, Err: err, UserID: creds.UserID}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureBadPassword, UserID: creds.UserID}
	}
	if !creds.Active {
		return LoginResult{Failure: LoginFailureInactive, UserID: creds.UserID}
	}

	pair, err := deps.Mint(creds.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureMint, Err: err, UserID: creds.UserID}
	}

	rec := recordFor(creds.UserID, pair, deps.Fingerprint, deps.Now())
	if err := deps.SessionStore.Upsert(ctx, rec); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err, UserID: creds.UserID}
	}

	return LoginResult{UserID: creds.UserID, Pair: pair}
}
