package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps tiers in process memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	tiers    map[string]map[string][]byte
	size     int64
	maxBytes int64
}

// NewMemoryBackend creates an empty backend. maxBytes limits the total size
// of stored values; 0 means unlimited.
func NewMemoryBackend(maxBytes int64) *MemoryBackend {
	return &MemoryBackend{
		tiers:    make(map[string]map[string][]byte),
		maxBytes: maxBytes,
	}
}

// CreateTier implements Backend.
func (b *MemoryBackend) CreateTier(ctx context.Context, tier string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tiers[tier]; !ok {
		b.tiers[tier] = make(map[string][]byte)
	}
	return nil
}

// TierNames implements Backend.
func (b *MemoryBackend) TierNames(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tiers))
	for name := range b.tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasTier implements Backend.
func (b *MemoryBackend) HasTier(ctx context.Context, tier string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tiers[tier]
	return ok, nil
}

// DeleteTier implements Backend.
func (b *MemoryBackend) DeleteTier(ctx context.Context, tier string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, ok := b.tiers[tier]
	if !ok {
		return false, nil
	}
	for _, v := range entries {
		b.size -= int64(len(v))
	}
	delete(b.tiers, tier)
	return true, nil
}

// Get implements Backend.
func (b *MemoryBackend) Get(ctx context.Context, tier, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries, ok := b.tiers[tier]
	if !ok {
		return nil, ErrCacheMiss
	}
	v, ok := entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

// PutBatch implements Backend.
func (b *MemoryBackend) PutBatch(ctx context.Context, tier string, entries map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.tiers[tier]

	delta := int64(0)
	for k, v := range entries {
		delta += int64(len(v))
		if old, ok := existing[k]; ok {
			delta -= int64(len(old))
		}
	}
	if b.maxBytes > 0 && b.size+delta > b.maxBytes {
		return ErrQuotaExceeded
	}

	if existing == nil {
		existing = make(map[string][]byte, len(entries))
		b.tiers[tier] = existing
	}
	for k, v := range entries {
		existing[k] = append([]byte(nil), v...)
	}
	b.size += delta

	return nil
}

// Size returns the total stored bytes.
func (b *MemoryBackend) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}
