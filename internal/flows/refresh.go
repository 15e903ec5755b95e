package flows

import (
	"context"
	"errors"
	"time"

	"github.com/AvanindraBose/irisauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureVerify
	RefreshFailureSessionNotFound
	RefreshFailureReuse
	RefreshFailureExpired
	RefreshFailureMint
	RefreshFailureRotate
)

var (
	errSessionAbsent  = errors.New("session absent")
	errFingerprint    = errors.New("fingerprint mismatch")
	errRecordExpired  = errors.New("session record expired")
	errMintInRotation = errors.New("mint failed during rotation")
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	Pair    TokenPair
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh     RefreshVerifier
	VerifyFingerprint func(token, stored string) bool
	Fingerprint       func(string) string
	Mint              Minter
	Now               func() time.Time
	SessionStore      SessionStore
}

// RunRefresh rotates the principal's refresh token.
//
// The presented token is checked statelessly first. The fingerprint and expiry
// checks then run against the row-locked record, and the new pair is minted and
// written before the lock is released, so of several concurrent calls with the
// same token exactly one succeeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	userID, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureVerify, Err: err}
	}

	var (
		pair    TokenPair
		mintErr error
	)
	_, err = deps.SessionStore.Rotate(ctx, userID, func(current *session.Record) (session.Record, error) {
		if current == nil {
			return session.Record{}, errSessionAbsent
		}
		if !deps.VerifyFingerprint(refreshToken, current.Fingerprint) {
			return session.Record{}, errFingerprint
		}
		now := deps.Now()
		if current.Expired(now) {
			return session.Record{}, errRecordExpired
		}

		pair, mintErr = deps.Mint(userID)
		if mintErr != nil {
			return session.Record{}, errMintInRotation
		}
		return recordFor(userID, pair, deps.Fingerprint, now), nil
	})

	switch {
	case err == nil:
		return RefreshResult{UserID: userID, Pair: pair}
	case errors.Is(err, errSessionAbsent):
		return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, UserID: userID}
	case errors.Is(err, errFingerprint):
		return RefreshResult{Failure: RefreshFailureReuse, Err: err, UserID: userID}
	case errors.Is(err, errRecordExpired):
		return RefreshResult{Failure: RefreshFailureExpired, Err: err, UserID: userID}
	case errors.Is(err, errMintInRotation):
		return RefreshResult{Failure: RefreshFailureMint, Err: mintErr, UserID: userID}
	default:
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: userID}
	}
}
