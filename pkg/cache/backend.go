package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the key is not stored in the tier (or the tier
	// does not exist).
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrQuotaExceeded indicates the backend refused a write for lack of space.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Backend stores encoded entries grouped by tier name.
//
// Implementations must be safe for concurrent use. PutBatch must be atomic:
// either every entry is visible afterwards or none is, and a tier that did
// not exist before a failed PutBatch must still not exist after it.
type Backend interface {
	// CreateTier registers an empty tier. Creating an existing tier is a no-op.
	CreateTier(ctx context.Context, tier string) error

	// TierNames lists existing tiers in sorted order.
	TierNames(ctx context.Context) ([]string, error)

	// HasTier reports whether the tier exists.
	HasTier(ctx context.Context, tier string) (bool, error)

	// DeleteTier removes the tier and all its entries. It reports whether
	// the tier existed.
	DeleteTier(ctx context.Context, tier string) (bool, error)

	// Get returns the encoded entry or ErrCacheMiss.
	Get(ctx context.Context, tier, key string) ([]byte, error)

	// PutBatch writes entries into the tier, creating it if needed.
	PutBatch(ctx context.Context, tier string, entries map[string][]byte) error
}
