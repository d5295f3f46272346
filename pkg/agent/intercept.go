package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/classify"
	"github.com/Sternrassler/offline-agent/pkg/event"
	"github.com/Sternrassler/offline-agent/pkg/fetch"
	"github.com/Sternrassler/offline-agent/pkg/notify"
)

// Handle answers one intercepted request. Tier writes it schedules run under
// ev's extended lifetime; the caller settles ev.
//
// Requests with a non-network scheme, and all requests before the agent
// serves, go to the network untouched. An error is only returned for such
// passthrough requests when the network fails; every controlled request gets
// a response.
func (a *Agent) Handle(ctx context.Context, ev *event.Event, req *fetch.Request) (resp *fetch.Response, err error) {
	if req == nil || req.URL == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if req.Origin == nil {
		r := *req
		r.Origin = a.config.Origin
		req = &r
	}

	if !classify.IsNetworkScheme(req.URL) {
		a.logger.Debug().Str("scheme", req.URL.Scheme).Msg("Non-network request bypasses agent")
		return a.passthrough(ctx, req, "bypass")
	}
	if a.State() != StateServing {
		return a.passthrough(ctx, req, "unclaimed")
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Err(fmt.Errorf("%w: %v", ErrUnhandledInterception, r)).
				Str("url", req.URL.String()).
				Msg("Interception panicked, passing request through")
			resp, err = a.passthrough(ctx, req, "recovered")
		}
	}()

	class := a.classifier.Classify(req)
	start := time.Now()

	var source Source
	switch class {
	case classify.LiveData:
		resp, source = a.networkFirst(ctx, ev, req)
	case classify.StaticAsset:
		resp, source = a.cacheFirst(ctx, ev, req, a.tiers.Asset())
	case classify.Navigation:
		resp, source = a.navigation(ctx, req)
	default:
		resp, source = a.cacheFirst(ctx, ev, req, a.tiers.Dynamic())
	}

	requestsTotal.WithLabelValues(string(class), string(source)).Inc()
	requestDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())

	a.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("class", string(class)).
		Str("source", string(source)).
		Int("status", resp.Status).
		Msg("Request handled")

	return resp, nil
}

func (a *Agent) passthrough(ctx context.Context, req *fetch.Request, reason string) (*fetch.Response, error) {
	requestsTotal.WithLabelValues(reason, string(SourcePassthrough)).Inc()
	return a.network.Fetch(ctx, req)
}

// Intercept handles req asynchronously under ev and returns the eventual
// response.
func (a *Agent) Intercept(ev *event.Event, req *fetch.Request) *event.Future[*fetch.Response] {
	return event.Go(ev, func(ctx context.Context) (*fetch.Response, error) {
		return a.Handle(ctx, ev, req)
	})
}

// RoundTrip implements http.RoundTripper. Each request is its own tracked
// event; tier writes finish in the background and are drained by Close.
func (a *Agent) RoundTrip(r *http.Request) (*http.Response, error) {
	req, err := fetch.FromHTTPRequest(r)
	if err != nil {
		return nil, err
	}

	ev := a.NewEvent(r.Context())
	resp, err := a.Handle(r.Context(), ev, req)
	go func() {
		if serr := ev.Settle(); serr != nil {
			a.logger.Warn().Err(serr).Msg("Request event settled with error")
		}
	}()
	if err != nil {
		return nil, err
	}
	return resp.ToHTTPResponse(r), nil
}

// Push shows an alert for a push message.
func (a *Agent) Push(ev *event.Event, raw []byte) *event.Future[notify.Alert] {
	return a.dispatcher.Push(ev, raw)
}

// Interact routes a user interaction with a shown alert.
func (a *Agent) Interact(ev *event.Event, in notify.Interaction) *event.Future[notify.Action] {
	return a.dispatcher.Interact(ev, in)
}
