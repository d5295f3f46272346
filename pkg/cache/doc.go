// Package cache provides the versioned storage tiers of the offline agent.
//
// A tier is a named key-value store mapping a normalized request identity to
// an immutable response snapshot. Tier names carry a namespace and a version:
//
//	{namespace}-{tier}-{version}   e.g. "app-static-v1"
//
// Bumping the version changes every name in the current TierSet, so
// activation can drop all tiers of earlier versions by name alone.
//
// # Backends
//
// The Manager delegates storage to a Backend:
//
//   - MemoryBackend: process-local maps, optional byte quota
//   - RedisBackend: a registry set plus one hash per tier
//   - BadgerBackend: embedded persistent store, one key prefix per tier
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.NewMemoryBackend(0))
//	tiers := cache.TierSet{Namespace: "app", Version: "v1"}
//
//	key, err := cache.KeyFor(req)
//	if err != nil {
//		// non-network scheme, never stored
//	}
//
//	snap, err := manager.Tier(tiers.Asset()).Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from network
//	}
//
// Entries never expire. They disappear only when their tier is deleted or
// when a later write to the same key replaces them (last write wins).
//
// # Metrics
//
//   - agent_tier_hits_total{tier}
//   - agent_tier_misses_total{tier}
//   - agent_tier_write_bytes_total{tier}
//   - agent_tier_errors_total{operation}
//   - agent_tier_quota_exceeded_total
//   - agent_tiers_deleted_total
package cache
