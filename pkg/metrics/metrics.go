// Package metrics exposes the Prometheus metrics of the offline agent.
// All metrics are defined in their respective packages (agent, cache, fetch,
// notify) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and documentation for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the agent.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics scrape handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/agent):
//   - agent_requests_total{class, source} (Counter): Intercepted requests by class and answering source
//   - agent_request_duration_seconds{class} (Histogram): Interception duration by class
//   - agent_store_failures_total{reason} (Counter): Swallowed tier write failures (quota, error)
//
// Lifecycle Metrics (pkg/agent):
//   - agent_provision_total{result} (Counter): Provisioning runs (success, fetch_failure, write_failure)
//   - agent_lifecycle_state (Gauge): 0=uninitialized, 1=provisioning, 2=activating, 3=serving
//
// Tier Metrics (pkg/cache):
//   - agent_tier_hits_total{tier} (Counter): Tier hits
//   - agent_tier_misses_total{tier} (Counter): Tier misses
//   - agent_tier_write_bytes_total{tier} (Counter): Bytes written per tier
//   - agent_tier_errors_total{operation} (Counter): Tier operation errors
//   - agent_tier_quota_exceeded_total (Counter): Writes rejected for lack of storage
//   - agent_tiers_deleted_total (Counter): Tiers deleted on activation
//
// Network Metrics (pkg/fetch):
//   - agent_network_requests_total{outcome} (Counter): Network fetches (response, failure)
//   - agent_network_duration_seconds (Histogram): Network fetch duration
//
// Notification Metrics (pkg/notify):
//   - agent_push_messages_total{payload} (Counter): Push messages (json, raw, empty)
//   - agent_notification_interactions_total{action} (Counter): Interactions (focus, open)
//   - agent_notification_errors_total{operation} (Counter): Notification channel errors
//
// Example Prometheus Queries:
//
//   # Offline Answer Rate
//   sum(rate(agent_requests_total{source="fallback"}[5m])) /
//   sum(rate(agent_requests_total[5m]))
//
//   # Tier Hit Rate
//   sum(rate(agent_tier_hits_total[5m])) /
//   (sum(rate(agent_tier_hits_total[5m])) + sum(rate(agent_tier_misses_total[5m])))
//
//   # Storage Pressure
//   rate(agent_tier_quota_exceeded_total[15m]) > 0
//
//   # P95 Interception Latency
//   histogram_quantile(0.95, rate(agent_request_duration_seconds_bucket[5m]))
