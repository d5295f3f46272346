package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/rs/zerolog"
)

// Manager owns the tiers of one agent.
type Manager struct {
	backend Backend
	logger  zerolog.Logger
}

// NewManager creates a tier manager on top of backend.
func NewManager(backend Backend) *Manager {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	return &Manager{
		backend: backend,
		logger:  logging.NewLogger(logging.ComponentTierManager),
	}
}

// Tier returns a handle to the named tier without creating it. Reads from a
// tier that does not exist report ErrCacheMiss; writes create it.
func (m *Manager) Tier(name string) *Tier {
	return &Tier{manager: m, name: name}
}

// Names lists existing tiers.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	names, err := m.backend.TierNames(ctx)
	if err != nil {
		TierErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return names, nil
}

// Has reports whether the named tier exists.
func (m *Manager) Has(ctx context.Context, name string) (bool, error) {
	ok, err := m.backend.HasTier(ctx, name)
	if err != nil {
		TierErrors.WithLabelValues("list").Inc()
		return false, fmt.Errorf("check tier %s: %w", name, err)
	}
	return ok, nil
}

// Delete removes the named tier and every entry in it.
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	existed, err := m.backend.DeleteTier(ctx, name)
	if err != nil {
		TierErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("delete tier %s: %w", name, err)
	}
	if existed {
		TiersDeleted.Inc()
		m.logger.Debug().Str("tier", name).Msg("Tier deleted")
	}
	return existed, nil
}

// Match looks key up in the given tiers, in order, and returns the first
// hit. With no tiers given, every existing tier is searched.
func (m *Manager) Match(ctx context.Context, key Key, tiers ...string) (*Snapshot, error) {
	if len(tiers) == 0 {
		names, err := m.Names(ctx)
		if err != nil {
			return nil, err
		}
		tiers = names
	}

	for _, name := range tiers {
		snap, err := m.Tier(name).Get(ctx, key)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
	}
	return nil, ErrCacheMiss
}

// Tier is a handle to one named tier.
type Tier struct {
	manager *Manager
	name    string
}

// Name returns the tier name.
func (t *Tier) Name() string {
	return t.name
}

// Get returns the snapshot stored under key or ErrCacheMiss.
func (t *Tier) Get(ctx context.Context, key Key) (*Snapshot, error) {
	data, err := t.manager.backend.Get(ctx, t.name, key.String())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			TierMisses.WithLabelValues(t.name).Inc()
			return nil, ErrCacheMiss
		}
		TierErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("tier %s get: %w", t.name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		TierErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	TierHits.WithLabelValues(t.name).Inc()
	t.manager.logger.Debug().
		Str("tier", t.name).
		Str("key", key.String()).
		Msg("Tier hit")

	return &snap, nil
}

// Put stores snap under key, replacing any previous entry.
func (t *Tier) Put(ctx context.Context, key Key, snap *Snapshot) error {
	return t.PutAll(ctx, []Entry{{Key: key, Snapshot: snap}})
}

// PutAll stores all entries atomically.
func (t *Tier) PutAll(ctx context.Context, entries []Entry) error {
	encoded := make(map[string][]byte, len(entries))
	total := 0
	for _, e := range entries {
		if e.Snapshot == nil {
			return fmt.Errorf("cache entry cannot be nil")
		}
		data, err := json.Marshal(e.Snapshot)
		if err != nil {
			TierErrors.WithLabelValues("put").Inc()
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		encoded[e.Key.String()] = data
		total += len(data)
	}

	if err := t.manager.backend.PutBatch(ctx, t.name, encoded); err != nil {
		TierErrors.WithLabelValues("put").Inc()
		if errors.Is(err, ErrQuotaExceeded) {
			TierQuotaExceeded.Inc()
		}
		return fmt.Errorf("tier %s put: %w", t.name, err)
	}

	TierWriteBytes.WithLabelValues(t.name).Add(float64(total))
	return nil
}
