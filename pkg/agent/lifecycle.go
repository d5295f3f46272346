package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/manifest"
)

// State is the lifecycle state of an agent.
type State int32

const (
	// StateUninitialized is the state of a new agent.
	StateUninitialized State = iota

	// StateProvisioning is entered by Provision. It is kept after
	// provisioning ends, successfully or not, until Activate.
	StateProvisioning

	// StateActivating is entered by Activate while stale tiers are removed.
	StateActivating

	// StateServing is the final state. Only serving agents answer requests.
	StateServing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProvisioning:
		return "provisioning"
	case StateActivating:
		return "activating"
	case StateServing:
		return "serving"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
	lifecycleState.Set(float64(s))
}

// SkipWaiting reports whether successful provisioning asked the host to
// activate this version without waiting for older ones to go away.
func (a *Agent) SkipWaiting() bool {
	return a.skipWaiting.Load()
}

// Claimed reports whether the agent has taken control of requests.
func (a *Agent) Claimed() bool {
	return a.claimed.Load()
}

// Provision fetches the manifest and writes it into the static tier in one
// atomic batch. It is only valid on an uninitialized agent; concurrent
// callers share one run. A failed run is not retried and leaves the static
// tier absent, but the agent may still be activated.
func (a *Agent) Provision(ctx context.Context) error {
	_, err, shared := a.flight.Do("provision", func() (interface{}, error) {
		if !a.state.CompareAndSwap(int32(StateUninitialized), int32(StateProvisioning)) {
			return nil, fmt.Errorf("%w: provision from %s", ErrInvalidTransition, a.State())
		}
		lifecycleState.Set(float64(StateProvisioning))
		defer a.provisioned.Store(true)

		return nil, a.provision(ctx)
	})
	if shared {
		a.logger.Debug().Msg("Joined in-flight provisioning")
	}
	return err
}

func (a *Agent) provision(ctx context.Context) error {
	start := time.Now()
	static := a.tiers.Static()

	a.logger.Info().
		Str("tier", static).
		Int("members", len(a.config.Manifest)).
		Msg("Provisioning static tier")

	items, err := a.manifest.FetchAll(ctx, a.config.Origin, a.config.Manifest)
	if err != nil {
		provisionTotal.WithLabelValues("fetch_failure").Inc()
		perr := &ProvisionError{Err: err}
		var memberErr *manifest.MemberError
		if errors.As(err, &memberErr) {
			perr.Resource = memberErr.Resource
		}
		a.logger.Error().Err(perr).Msg("Provisioning failed")
		return perr
	}

	entries := make([]cache.Entry, 0, len(items))
	for _, item := range items {
		key, err := cache.KeyFor(item.Request)
		if err != nil {
			provisionTotal.WithLabelValues("fetch_failure").Inc()
			perr := &ProvisionError{Resource: item.Resource, Err: err}
			a.logger.Error().Err(perr).Msg("Provisioning failed")
			return perr
		}
		snap, err := cache.ResponseToSnapshot(key, item.Response)
		if err != nil {
			provisionTotal.WithLabelValues("fetch_failure").Inc()
			perr := &ProvisionError{Resource: item.Resource, Err: err}
			a.logger.Error().Err(perr).Msg("Provisioning failed")
			return perr
		}
		entries = append(entries, cache.Entry{Key: key, Snapshot: snap})
	}

	if err := a.cache.Tier(static).PutAll(ctx, entries); err != nil {
		provisionTotal.WithLabelValues("write_failure").Inc()
		perr := &ProvisionError{Err: fmt.Errorf("%w: %w", ErrStorageWrite, err)}
		if errors.Is(err, cache.ErrQuotaExceeded) {
			a.logger.Error().Err(perr).Str("tier", static).Msg("Provisioning exceeded storage quota")
		} else {
			a.logger.Error().Err(perr).Str("tier", static).Msg("Provisioning failed")
		}
		return perr
	}

	provisionTotal.WithLabelValues("success").Inc()
	a.skipWaiting.Store(true)
	a.logger.Info().
		Str("tier", static).
		Int("members", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Static tier provisioned")
	return nil
}

// Activate deletes every stored tier that is not part of the current set,
// then claims requests and starts serving. It is only valid once
// provisioning has ended.
//
// If stale tiers cannot be listed or deleted the agent still serves, and the
// returned error wraps ErrStaleTiers with every backend failure.
func (a *Agent) Activate(ctx context.Context) error {
	if !a.provisioned.Load() ||
		!a.state.CompareAndSwap(int32(StateProvisioning), int32(StateActivating)) {
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, a.State())
	}
	lifecycleState.Set(float64(StateActivating))

	var errs []error
	names, err := a.cache.Names(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to list tiers, stale tiers kept")
		errs = append(errs, err)
	}

	deleted := 0
	for _, name := range names {
		if a.tiers.Contains(name) {
			continue
		}
		existed, err := a.cache.Delete(ctx, name)
		if err != nil {
			a.logger.Error().Err(err).Str("tier", name).Msg("Failed to delete stale tier")
			errs = append(errs, fmt.Errorf("tier %s: %w", name, err))
			continue
		}
		if existed {
			deleted++
			a.logger.Info().Str("tier", name).Msg("Deleted stale tier")
		}
	}

	a.claimed.Store(true)
	a.setState(StateServing)
	a.logger.Info().
		Int("deleted_tiers", deleted).
		Int("failed_tiers", len(errs)).
		Msg("Agent activated")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrStaleTiers, errors.Join(errs...))
	}
	return nil
}
