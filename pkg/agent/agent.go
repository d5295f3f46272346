// Package agent provides the interception cache agent: it classifies
// outgoing requests, answers them from versioned storage tiers or the
// network, and synthesizes offline fallbacks when neither can answer.
package agent

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/classify"
	"github.com/Sternrassler/offline-agent/pkg/event"
	"github.com/Sternrassler/offline-agent/pkg/fallback"
	"github.com/Sternrassler/offline-agent/pkg/fetch"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/Sternrassler/offline-agent/pkg/manifest"
	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for agent operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_requests_total",
		Help: "Total intercepted requests by class and answering source",
	}, []string{"class", "source"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_request_duration_seconds",
		Help:    "Interception duration in seconds by class",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"class"})

	provisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_provision_total",
		Help: "Total provisioning runs by result",
	}, []string{"result"}) // "success", "fetch_failure", "write_failure"

	storeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_store_failures_total",
		Help: "Total swallowed tier write failures by reason",
	}, []string{"reason"}) // "quota", "error"

	lifecycleState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_lifecycle_state",
		Help: "Current lifecycle state (0=uninitialized, 1=provisioning, 2=activating, 3=serving)",
	})
)

// Source is what answered an intercepted request.
type Source string

const (
	// SourceTier means a stored entry answered.
	SourceTier Source = "tier"

	// SourceNetwork means the network answered.
	SourceNetwork Source = "network"

	// SourceFallback means a synthesized or stored fallback answered.
	SourceFallback Source = "fallback"

	// SourcePassthrough means the agent did not control the request.
	SourcePassthrough Source = "passthrough"
)

// DefaultNamespace prefixes tier names.
const DefaultNamespace = "app"

// DefaultVersion is the tier version of a fresh deployment.
const DefaultVersion = "v1"

// DefaultManifest lists the resources provisioned into the static tier.
var DefaultManifest = []string{
	"/",
	"/offline.html",
	"/assets/app.css",
	"/assets/app.js",
	"/images/icon-192.png",
	"/images/icon-512.png",
	"/images/maskable-icon.png",
	"/images/child-doctor1.png",
	"/images/healthcare-provider.png",
}

// Config holds the agent configuration.
type Config struct {
	// Origin is the application origin. Manifest entries and fallback
	// targets resolve against it. REQUIRED.
	Origin *url.URL

	// Namespace and Version name the tier set.
	Namespace string
	Version   string

	// Manifest is provisioned into the static tier.
	Manifest []string

	// Backend stores the tiers. REQUIRED.
	Backend cache.Backend

	// Fetcher reaches the network. REQUIRED.
	Fetcher fetch.Fetcher

	// Rules drive request classification.
	Rules classify.Rules

	// Fallback names the stored fallbacks. Base defaults to Origin.
	Fallback fallback.Config

	// Presenter and Clients back the notification channel. Defaults are
	// an in-process notify.Center and notify.WindowRegistry.
	Presenter notify.Presenter
	Clients   notify.Clients

	// Provisioning concurrency and per-member timeout.
	ProvisionConcurrency int
	ProvisionTimeout     time.Duration
}

// DefaultConfig returns the default configuration for origin.
func DefaultConfig(origin *url.URL, backend cache.Backend, fetcher fetch.Fetcher) Config {
	return Config{
		Origin:               origin,
		Namespace:            DefaultNamespace,
		Version:              DefaultVersion,
		Manifest:             append([]string(nil), DefaultManifest...),
		Backend:              backend,
		Fetcher:              fetcher,
		Rules:                classify.DefaultRules(),
		Fallback:             fallback.DefaultConfig(origin),
		ProvisionConcurrency: 4,
		ProvisionTimeout:     15 * time.Second,
	}
}

// Agent is the interception cache agent.
type Agent struct {
	config     Config
	tiers      cache.TierSet
	cache      *cache.Manager
	network    fetch.Fetcher
	classifier *classify.Classifier
	fallbacks  *fallback.Resolver
	manifest   *manifest.BatchFetcher
	dispatcher *notify.Dispatcher
	logger     zerolog.Logger

	state       atomic.Int32
	provisioned atomic.Bool
	skipWaiting atomic.Bool
	claimed     atomic.Bool
	flight      singleflight.Group

	events sync.WaitGroup
}

// New creates an agent in the uninitialized state.
func New(cfg Config) (*Agent, error) {
	if cfg.Origin == nil || !cfg.Origin.IsAbs() {
		return nil, fmt.Errorf("absolute origin is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("cache backend is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Manifest == nil {
		cfg.Manifest = append([]string(nil), DefaultManifest...)
	}
	if cfg.Fallback.Base == nil {
		cfg.Fallback.Base = cfg.Origin
	}
	if cfg.Presenter == nil {
		cfg.Presenter = notify.NewCenter()
	}
	if cfg.Clients == nil {
		cfg.Clients = notify.NewWindowRegistry()
	}

	logger := logging.NewLogger(logging.ComponentAgent).With().
		Str("version", cfg.Version).
		Logger()

	tiers := cache.TierSet{Namespace: cfg.Namespace, Version: cfg.Version}
	manager := cache.NewManager(cfg.Backend)

	resolver, err := fallback.NewResolver(manager, tiers, cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("create fallback resolver: %w", err)
	}

	dispatcher, err := notify.NewDispatcher(cfg.Presenter, cfg.Clients, cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("create notification dispatcher: %w", err)
	}

	a := &Agent{
		config:     cfg,
		tiers:      tiers,
		cache:      manager,
		network:    cfg.Fetcher,
		classifier: classify.New(cfg.Rules),
		fallbacks:  resolver,
		manifest: manifest.NewBatchFetcher(cfg.Fetcher, manifest.Config{
			MaxConcurrency: cfg.ProvisionConcurrency,
			Timeout:        cfg.ProvisionTimeout,
		}),
		dispatcher: dispatcher,
		logger:     logger,
	}
	a.setState(StateUninitialized)
	return a, nil
}

// Tiers returns the current tier set.
func (a *Agent) Tiers() cache.TierSet {
	return a.tiers
}

// Cache returns the tier manager.
func (a *Agent) Cache() *cache.Manager {
	return a.cache
}

// NewEvent creates an event the agent tracks until it settles. Close waits
// for tracked events.
func (a *Agent) NewEvent(ctx context.Context) *event.Event {
	a.events.Add(1)
	return event.NewTracked(ctx, a.events.Done)
}

// Close waits for tracked events to settle or ctx to end.
func (a *Agent) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.events.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Debug().Msg("Agent drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain pending events: %w", ctx.Err())
	}
}
