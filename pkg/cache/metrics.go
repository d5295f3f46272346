package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TierHits tracks lookups answered by a tier.
	TierHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tier_hits_total",
			Help: "Total number of tier lookups that found an entry",
		},
		[]string{"tier"},
	)

	// TierMisses tracks lookups that found nothing.
	TierMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tier_misses_total",
			Help: "Total number of tier lookups that found no entry",
		},
		[]string{"tier"},
	)

	// TierWriteBytes tracks encoded bytes written per tier.
	TierWriteBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tier_write_bytes_total",
			Help: "Total encoded bytes written into tiers",
		},
		[]string{"tier"},
	)

	// TierErrors tracks backend failures by operation.
	TierErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tier_errors_total",
			Help: "Total number of tier operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "list", "open"
	)

	// TierQuotaExceeded tracks writes refused for lack of space.
	TierQuotaExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tier_quota_exceeded_total",
			Help: "Total number of tier writes refused because the storage quota was exhausted",
		},
	)

	// TiersDeleted tracks tier deletions.
	TiersDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tiers_deleted_total",
			Help: "Total number of tiers deleted",
		},
	)
)
