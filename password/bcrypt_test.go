package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash(context.Background(), "P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if len(hash) != 60 || !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected bcrypt hash: %s", hash)
	}

	ok, err := h.Verify(context.Background(), "P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash(context.Background(), "correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify(context.Background(), "wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	ok, err := h.Verify(context.Background(), "whatever", "not-a-bcrypt-hash")
	if err == nil || ok {
		t.Fatalf("expected malformed hash error, got ok=%v err=%v", ok, err)
	}
}

func TestHashRejectsLengthOutOfRange(t *testing.T) {
	h := newTestHasher(t)

	if _, err := h.Hash(context.Background(), ""); !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected ErrPasswordLength for empty input, got %v", err)
	}
	if _, err := h.Hash(context.Background(), strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected ErrPasswordLength for long input, got %v", err)
	}
}

func TestNewHasherRejectsBadCost(t *testing.T) {
	if _, err := NewHasher(Config{Cost: 2}); err == nil {
		t.Fatal("expected cost below MinCost to fail")
	}
	if _, err := NewHasher(Config{Cost: 99}); err == nil {
		t.Fatal("expected cost above MaxCost to fail")
	}
	if _, err := NewHasher(Config{MaxConcurrent: -1}); err == nil {
		t.Fatal("expected negative concurrency to fail")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newTestHasher(t)
	hash, err := oldHasher.Hash(context.Background(), "test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher, err := NewHasher(Config{Cost: bcrypt.MinCost + 1})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	needs, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needs {
		t.Fatal("expected lower-cost hash to need upgrade")
	}

	needs, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needs {
		t.Fatal("expected same-cost hash not to need upgrade")
	}
}

func TestBurnDummy(t *testing.T) {
	h := newTestHasher(t)
	if err := h.BurnDummy(context.Background(), "anything"); err != nil {
		t.Fatalf("BurnDummy error: %v", err)
	}
}

func TestHashHonoursContextWhenSaturated(t *testing.T) {
	h, err := NewHasher(Config{Cost: bcrypt.MinCost, MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Hash(ctx, "password"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConcurrentVerify(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash(context.Background(), "shared-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Verify(context.Background(), "shared-password", hash)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- errors.New("verification failed")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent verify: %v", err)
	}
}

func TestVerifyRejectsLongerPasswordSharingPrefix(t *testing.T) {
	h := newTestHasher(t)

	stored := strings.Repeat("a", 72)
	hash, err := h.Hash(context.Background(), stored)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify(context.Background(), stored, hash)
	if err != nil || !ok {
		t.Fatalf("expected exact 72-byte password to verify, got %v, %v", ok, err)
	}

	for _, other := range []string{stored + "-different-suffix", stored + "a"} {
		ok, err := h.Verify(context.Background(), other, hash)
		if err != nil {
			t.Fatalf("Verify error: %v", err)
		}
		if ok {
			t.Fatalf("password of %d bytes sharing the stored prefix was accepted", len(other))
		}
	}
}

func TestVerifyRejectsEmptyPassword(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash(context.Background(), "x")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if ok, err := h.Verify(context.Background(), "", hash); err != nil || ok {
		t.Fatalf("expected empty password to fail, got %v, %v", ok, err)
	}
}

func TestBurnDummyAcceptsOverLongInput(t *testing.T) {
	h := newTestHasher(t)

	if err := h.BurnDummy(context.Background(), strings.Repeat("z", 200)); err != nil {
		t.Fatalf("BurnDummy error: %v", err)
	}
}
