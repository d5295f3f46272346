package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/event"
	"github.com/Sternrassler/offline-agent/pkg/fallback"
	"github.com/Sternrassler/offline-agent/pkg/fetch"
)

// cacheFirst answers from tier (or the static tier), then the network.
// Successful network responses are stored into tier.
func (a *Agent) cacheFirst(ctx context.Context, ev *event.Event, req *fetch.Request, tier string) (*fetch.Response, Source) {
	key, cacheable := a.keyFor(req)

	if cacheable {
		snap, err := a.cache.Match(ctx, key, tier, a.tiers.Static())
		if err == nil {
			return cache.SnapshotToResponse(snap), SourceTier
		}
		if !fallback.IsMiss(err) {
			a.logger.Warn().Err(err).Str("key", key.String()).Msg("Tier lookup failed, using network")
		}
	}

	resp, err := a.network.Fetch(ctx, req)
	if err != nil {
		a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Network unavailable")
		if a.fallbacks.IsImage(req.URL) {
			img, ierr := a.fallbacks.Image(ctx)
			if ierr == nil {
				return img, SourceFallback
			}
			if !fallback.IsMiss(ierr) {
				a.logger.Warn().Err(ierr).Msg("Fallback image lookup failed")
			}
		}
		return fetch.Empty(http.StatusNotFound), SourceFallback
	}

	if cacheable && resp.OK() {
		a.store(ev, tier, key, resp.Clone())
	}
	return resp, SourceNetwork
}

// networkFirst answers from the network and keeps the dynamic tier current.
// Without network it answers from the dynamic tier, then with the offline
// data response or an empty 504.
func (a *Agent) networkFirst(ctx context.Context, ev *event.Event, req *fetch.Request) (*fetch.Response, Source) {
	key, cacheable := a.keyFor(req)
	dynamic := a.tiers.Dynamic()

	resp, err := a.network.Fetch(ctx, req)
	if err == nil {
		if cacheable && resp.OK() {
			a.store(ev, dynamic, key, resp.Clone())
		}
		return resp, SourceNetwork
	}
	a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Network unavailable, trying dynamic tier")

	if cacheable {
		snap, err := a.cache.Tier(dynamic).Get(ctx, key)
		if err == nil {
			return cache.SnapshotToResponse(snap), SourceTier
		}
		if !fallback.IsMiss(err) {
			a.logger.Warn().Err(err).Str("key", key.String()).Msg("Tier lookup failed")
		}
	}

	if a.fallbacks.WantsOfflineData(req.URL) {
		return a.fallbacks.OfflineData(), SourceFallback
	}
	return fetch.Empty(http.StatusGatewayTimeout), SourceFallback
}

// navigation answers from the network and falls back to the offline page.
// Navigations are never stored.
func (a *Agent) navigation(ctx context.Context, req *fetch.Request) (*fetch.Response, Source) {
	resp, err := a.network.Fetch(ctx, req)
	if err == nil {
		return resp, SourceNetwork
	}
	a.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Navigation failed, serving offline page")

	page, err := a.fallbacks.OfflinePage(ctx)
	if err == nil {
		return page, SourceFallback
	}
	if !fallback.IsMiss(err) {
		a.logger.Warn().Err(err).Msg("Offline page lookup failed")
	}
	return fetch.Empty(http.StatusGatewayTimeout), SourceFallback
}

// store writes resp into tier under the event's extended lifetime. Write
// failures are logged and counted, never returned.
func (a *Agent) store(ev *event.Event, tier string, key cache.Key, resp *fetch.Response) {
	snap, err := cache.ResponseToSnapshot(key, resp)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to capture response")
		return
	}

	ev.WaitUntil(func(ctx context.Context) error {
		if err := a.cache.Tier(tier).Put(ctx, key, snap); err != nil {
			if errors.Is(err, cache.ErrQuotaExceeded) {
				storeFailuresTotal.WithLabelValues("quota").Inc()
				a.logger.Warn().
					Err(err).
					Str("tier", tier).
					Str("key", key.String()).
					Int("bytes", snap.Size()).
					Msg("Storage quota exceeded, response not stored")
				return nil
			}
			storeFailuresTotal.WithLabelValues("error").Inc()
			a.logger.Warn().
				Err(errors.Join(ErrStorageWrite, err)).
				Str("tier", tier).
				Str("key", key.String()).
				Msg("Failed to store response")
			return nil
		}
		a.logger.Debug().Str("tier", tier).Str("key", key.String()).Msg("Stored response")
		return nil
	})
}

// keyFor returns the tier key of req and whether req may use the tiers at
// all. Only GET requests are looked up and stored.
func (a *Agent) keyFor(req *fetch.Request) (cache.Key, bool) {
	if req.Method != "" && !strings.EqualFold(req.Method, http.MethodGet) {
		return cache.Key{}, false
	}
	key, err := cache.KeyFor(req)
	if err != nil {
		return cache.Key{}, false
	}
	return key, true
}
