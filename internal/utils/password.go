package utils

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/iliyamo/user-authenticator/internal/config"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// ErrPasswordTooLong is returned for passwords bcrypt cannot represent.
var ErrPasswordTooLong = oops.Code("AUTH_PASSWORD_TOO_LONG").Errorf("password exceeds 72 bytes")

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// HashObserver receives the duration of every bcrypt computation.
type HashObserver func(time.Duration)

// Hasher hashes and verifies passwords with bcrypt. At most HashWorkers
// computations run at once; callers wait for a slot with their context.
type Hasher struct {
	cost    int
	slots   *semaphore.Weighted
	observe HashObserver
}

// HasherOption customises a Hasher.
type HasherOption func(*Hasher)

// WithHashObserver reports hash and verify latencies to fn.
func WithHashObserver(fn HashObserver) HasherOption {
	return func(h *Hasher) { h.observe = fn }
}

// NewHasher builds a Hasher from cfg.BcryptCost (clamped to bcrypt's
// range) and cfg.HashWorkers.
func NewHasher(cfg *config.Config, opts ...HasherOption) *Hasher {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	workers := cfg.HashWorkers
	if workers < 1 {
		workers = 1
	}
	h := &Hasher{cost: cost, slots: semaphore.NewWeighted(int64(workers))}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Cost returns the effective bcrypt work factor.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of plain. Every call embeds a fresh salt.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if len(plain) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	start := time.Now()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	h.report(start)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(b), nil
}

// Verify reports whether plain matches hash: (true, nil) on match,
// (false, nil) on mismatch, and an error when hash is not a bcrypt hash.
func (h *Hasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	// nothing longer than the limit was ever hashed, so it cannot match
	if len(plain) > maxPasswordBytes {
		return false, nil
	}
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	h.report(start)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}

func (h *Hasher) acquire(ctx context.Context) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASH_BUSY").Wrap(err)
	}
	return nil
}

func (h *Hasher) report(start time.Time) {
	if h.observe != nil {
		h.observe(time.Since(start))
	}
}
