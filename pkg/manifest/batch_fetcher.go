package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/fetch"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrBadStatus is returned for a manifest member answered with a non-2xx or
// opaque response.
var ErrBadStatus = errors.New("unusable manifest response")

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches.
	MaxConcurrency int

	// Timeout bounds each member fetch.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Item is one fetched manifest member.
type Item struct {
	// Resource is the identifier as listed in the manifest.
	Resource string

	// Request is the resolved GET request.
	Request *fetch.Request

	// Response is the fetched response.
	Response *fetch.Response
}

// MemberError reports which manifest member failed.
type MemberError struct {
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *MemberError) Error() string {
	return fmt.Sprintf("manifest member %s: %v", e.Resource, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MemberError) Unwrap() error {
	return e.Err
}

// BatchFetcher fetches whole manifests.
type BatchFetcher struct {
	fetcher fetch.Fetcher
	config  Config
}

// NewBatchFetcher creates a batch fetcher.
func NewBatchFetcher(fetcher fetch.Fetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every resource, resolved against base. On the first
// failure the remaining fetches are cancelled and a *MemberError is
// returned together with nil items.
func (bf *BatchFetcher) FetchAll(ctx context.Context, base *url.URL, resources []string) ([]Item, error) {
	start := time.Now()

	items := make([]Item, len(resources))
	for i, res := range resources {
		ref, err := url.Parse(res)
		if err != nil {
			return nil, &MemberError{Resource: res, Err: err}
		}
		items[i] = Item{
			Resource: res,
			Request: &fetch.Request{
				Method: http.MethodGet,
				URL:    base.ResolveReference(ref),
				Mode:   fetch.ModeSameOrigin,
				Header: make(http.Header),
				Origin: base,
			},
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for i := range items {
		item := &items[i]
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, bf.config.Timeout)
			defer cancel()

			resp, err := bf.fetcher.Fetch(fetchCtx, item.Request)
			if err != nil {
				return &MemberError{Resource: item.Resource, Err: err}
			}
			if resp.Opaque || resp.Status < 200 || resp.Status > 299 {
				return &MemberError{
					Resource: item.Resource,
					Err:      fmt.Errorf("%w: status %d", ErrBadStatus, resp.Status),
				}
			}
			item.Response = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("members", len(resources)).
			Dur("duration", time.Since(start)).
			Msg("Manifest fetch failed")
		return nil, err
	}

	log.Debug().
		Int("members", len(resources)).
		Dur("duration", time.Since(start)).
		Msg("Manifest fetch complete")

	return items, nil
}
