// Package manifest fetches the fixed resource manifest that provisioning
// writes into the static tier.
//
// Fetching is all-or-nothing: the batch fetcher runs a bounded worker pool,
// stops at the first failure and returns no partial results, so the caller
// never has anything partial to store.
//
// Example usage:
//
//	bf := manifest.NewBatchFetcher(network, manifest.DefaultConfig())
//	items, err := bf.FetchAll(ctx, origin, []string{"/", "/offline.html"})
//	if err != nil {
//		// nothing was fetched successfully enough to store
//	}
//
// The batch fetcher:
//   - resolves every identifier against the origin
//   - fetches with at most MaxConcurrency requests in flight
//   - requires a 2xx, non-opaque response for every member
//   - returns items in manifest order
package manifest
