// Package fallback supplies the responses served when neither a tier nor
// the network can answer.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/fetch"
)

// OfflineMessage is the message of the synthesized offline data response.
const OfflineMessage = "You are currently offline"

// imagePattern matches targets that look like images.
var imagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|svg)$`)

// OfflineBody is the JSON body of the synthesized offline data response.
type OfflineBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Offline bool   `json:"offline"`
}

// Config holds the identities of the stored fallbacks.
type Config struct {
	// Base resolves OfflinePage and FallbackImage into absolute targets.
	Base *url.URL

	// OfflinePage is the provisioned offline document.
	OfflinePage string

	// FallbackImage is returned when an image cannot be fetched.
	FallbackImage string

	// OfflineDataPrefixes mark data paths that get the structured offline
	// response instead of an empty 504.
	OfflineDataPrefixes []string
}

// DefaultConfig returns the standard fallback identities for base.
func DefaultConfig(base *url.URL) Config {
	return Config{
		Base:                base,
		OfflinePage:         "/offline.html",
		FallbackImage:       "/images/fallback-image.png",
		OfflineDataPrefixes: []string{"/api/"},
	}
}

// Resolver builds fallback responses.
type Resolver struct {
	manager *cache.Manager
	tiers   cache.TierSet
	cfg     Config
}

// NewResolver creates a resolver reading stored fallbacks through manager.
func NewResolver(manager *cache.Manager, tiers cache.TierSet, cfg Config) (*Resolver, error) {
	if manager == nil {
		return nil, fmt.Errorf("tier manager is required")
	}
	if cfg.Base == nil || !cfg.Base.IsAbs() {
		return nil, fmt.Errorf("absolute base url is required")
	}
	return &Resolver{manager: manager, tiers: tiers, cfg: cfg}, nil
}

// OfflinePage returns the provisioned offline document from the static tier.
func (r *Resolver) OfflinePage(ctx context.Context) (*fetch.Response, error) {
	key, err := r.key(r.cfg.OfflinePage)
	if err != nil {
		return nil, err
	}
	snap, err := r.manager.Tier(r.tiers.Static()).Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return cache.SnapshotToResponse(snap), nil
}

// Image returns the stored fallback image. Every current tier is searched,
// static first.
func (r *Resolver) Image(ctx context.Context) (*fetch.Response, error) {
	key, err := r.key(r.cfg.FallbackImage)
	if err != nil {
		return nil, err
	}
	snap, err := r.manager.Match(ctx, key, r.tiers.Static(), r.tiers.Asset(), r.tiers.Dynamic())
	if err != nil {
		return nil, err
	}
	return cache.SnapshotToResponse(snap), nil
}

// OfflineData returns the synthesized 503 JSON response.
func (r *Resolver) OfflineData() *fetch.Response {
	return OfflineData()
}

// IsImage reports whether u looks like an image resource.
func (r *Resolver) IsImage(u *url.URL) bool {
	return IsImage(u)
}

// WantsOfflineData reports whether u is a data path that gets the structured
// offline response.
func (r *Resolver) WantsOfflineData(u *url.URL) bool {
	if u == nil {
		return false
	}
	for _, prefix := range r.cfg.OfflineDataPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	return false
}

func (r *Resolver) key(target string) (cache.Key, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return cache.Key{}, fmt.Errorf("parse fallback target %q: %w", target, err)
	}
	return cache.NewKey(http.MethodGet, r.cfg.Base.ResolveReference(ref))
}

// OfflineData returns a 503 response whose body is
// {"error":true,"message":"You are currently offline","offline":true}.
func OfflineData() *fetch.Response {
	body, _ := json.Marshal(OfflineBody{
		Error:   true,
		Message: OfflineMessage,
		Offline: true,
	})
	resp := fetch.Empty(http.StatusServiceUnavailable)
	resp.Header.Set("Content-Type", "application/json")
	resp.Body = body
	return resp
}

// IsImage reports whether u's path ends in an image extension.
func IsImage(u *url.URL) bool {
	if u == nil {
		return false
	}
	return imagePattern.MatchString(u.Path)
}

// IsMiss reports whether err only means "nothing stored".
func IsMiss(err error) bool {
	return errors.Is(err, cache.ErrCacheMiss)
}
