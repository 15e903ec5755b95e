package password

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// bcrypt ignores everything past 72 bytes; reject instead of truncating silently.
	maxPassBytes = 72
	minPassBytes = 1
)

// ErrPasswordLength is returned by Hash for empty or over-long input.
var ErrPasswordLength = errors.New("password must be between 1 and 72 bytes")

// Config controls bcrypt cost and hashing concurrency.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// Cost is the bcrypt work factor. Zero means bcrypt.DefaultCost.
	Cost int
	// MaxConcurrent bounds simultaneous hash/verify calls. Zero means 4.
	MaxConcurrent int64
}

// Hasher hashes and verifies passwords with bcrypt.
//
// Hashing is CPU bound; a weighted semaphore caps how many run at once so a
// burst of logins cannot starve the rest of the process.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
	dummyErr  error
}

// NewHasher describes the newhasher operation and its observable behavior.
//
// NewHasher returns an error when the cost is outside bcrypt's accepted range.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be in [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost)
	}

	limit := cfg.MaxConcurrent
	if limit == 0 {
		limit = 4
	}
	if limit < 0 {
		return nil, errors.New("max concurrent hashes must be positive")
	}

	return &Hasher{cost: cost, sem: semaphore.NewWeighted(limit)}, nil
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when the password length is out of range, when ctx
// ends before a hashing slot frees up, or when bcrypt fails.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) < minPassBytes || len(plaintext) > maxPassBytes {
		return "", ErrPasswordLength
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify describes the verify operation and its observable behavior.
//
// A wrong password yields (false, nil). A malformed hash yields an error.
// Input Hash would reject never matches, since bcrypt only compares the first
// 72 bytes; the comparison still runs so timing does not depend on length.
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	candidate := []byte(plaintext)
	inRange := len(candidate) >= minPassBytes && len(candidate) <= maxPassBytes
	if len(candidate) > maxPassBytes {
		candidate = candidate[:maxPassBytes]
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), candidate)
	switch {
	case err == nil:
		return inRange, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// NeedsUpgrade reports whether hash was produced with a lower cost than the
// configured one.
func (h *Hasher) NeedsUpgrade(hash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, err
	}
	return cost < h.cost, nil
}

// BurnDummy runs one verification against a fixed hash at the configured cost.
// Login calls it when no principal matches so both paths take similar time.
func (h *Hasher) BurnDummy(ctx context.Context, plaintext string) error {
	h.dummyOnce.Do(func() {
		h.dummy, h.dummyErr = bcrypt.GenerateFromPassword([]byte("irisauth-dummy-password"), h.cost)
	})
	if h.dummyErr != nil {
		return h.dummyErr
	}
	_, err := h.Verify(ctx, plaintext, string(h.dummy))
	return err
}
