package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrNetworkUnavailable is returned when the network could not produce a
// response at all (DNS, connect, timeout, reset). HTTP error statuses are
// responses, not network failures.
var ErrNetworkUnavailable = errors.New("network unavailable")

var (
	networkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_network_requests_total",
		Help: "Total network fetches by outcome",
	}, []string{"outcome"}) // "response", "failure"

	networkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_network_duration_seconds",
		Help:    "Network fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)

// Fetcher performs network fetches.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPConfig configures the HTTP fetcher.
type HTTPConfig struct {
	// Timeout bounds a single fetch including body read.
	Timeout time.Duration

	// UserAgent is set on requests that carry none.
	UserAgent string

	// Transport overrides the underlying round tripper (tests, custom dialers).
	Transport http.RoundTripper
}

// DefaultHTTPConfig returns a safe default configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   30 * time.Second,
		UserAgent: "offline-agent/0.1.0",
	}
}

// HTTPFetcher fetches over net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewHTTPFetcher creates a fetcher from cfg.
func NewHTTPFetcher(cfg HTTPConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		userAgent: cfg.UserAgent,
		logger:    logging.NewLogger(logging.ComponentNetwork),
	}
}

// Fetch performs req and buffers the response. Any transport error is
// reported as ErrNetworkUnavailable.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.URL == nil {
		return nil, fmt.Errorf("request url cannot be nil")
	}

	start := time.Now()
	defer func() {
		networkDuration.Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}
	if httpReq.Header.Get("User-Agent") == "" && f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		networkRequestsTotal.WithLabelValues("failure").Inc()
		f.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Network fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		networkRequestsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: read body: %v", ErrNetworkUnavailable, err)
	}

	networkRequestsTotal.WithLabelValues("response").Inc()

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
		Opaque: isOpaque(req),
	}, nil
}

// isOpaque reports whether a no-cors request crossed origins.
func isOpaque(req *Request) bool {
	if req.Mode != ModeNoCORS || req.Origin == nil {
		return false
	}
	return !strings.EqualFold(req.Origin.Scheme, req.URL.Scheme) ||
		!strings.EqualFold(req.Origin.Host, req.URL.Host)
}
