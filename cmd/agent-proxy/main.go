package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/offline-agent/pkg/agent"
	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/config"
	"github.com/Sternrassler/offline-agent/pkg/fetch"
	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/Sternrassler/offline-agent/pkg/metrics"
	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// maxPushBytes bounds a pushed message body.
const maxPushBytes = 64 << 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.ConfigFor(cfg.LogLevel, cfg.LogPretty))
	logger := logging.NewLogger(logging.ComponentProxy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Agent proxy failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close tier backend")
		}
	}()
	logger.Info().Str("backend", cfg.Store).Msg("Tier backend ready")

	center := notify.NewCenter()
	a, err := newAgent(cfg, backend, center, notify.NewWindowRegistry())
	if err != nil {
		return err
	}

	// A failed provisioning run is logged by the agent; serving continues
	// without the static tier.
	_ = a.Provision(ctx)
	if err := a.Activate(ctx); err != nil {
		if !errors.Is(err, agent.ErrStaleTiers) {
			return fmt.Errorf("activate agent: %w", err)
		}
		logger.Warn().Err(err).Msg("Serving with stale tiers left in the backend")
	}

	if cfg.PushURL != "" {
		sub, err := notify.NewSubscriber(notify.DefaultSubscriberConfig(cfg.PushURL), a, a.NewEvent)
		if err != nil {
			return fmt.Errorf("create push subscriber: %w", err)
		}
		go func() {
			if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Push subscriber stopped")
			}
		}()
	}

	origin, _ := cfg.OriginURL()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(a, center, origin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("origin", origin.String()).
			Str("tiers", strings.Join(a.Tiers().Names(), ",")).
			Msg("Starting agent proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down agent proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Pending events abandoned")
	}
	return nil
}

// openBackend opens the configured tier backend and returns its closer.
func openBackend(ctx context.Context, cfg config.Config) (cache.Backend, func() error, error) {
	switch strings.ToLower(cfg.Store) {
	case config.BackendMemory:
		return cache.NewMemoryBackend(cfg.MemoryLimit), func() error { return nil }, nil

	case config.BackendRedis:
		opts, err := redisOptions(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		prefix := cache.DefaultRedisPrefix + ":" + cfg.Namespace
		return cache.NewRedisBackend(client, prefix), client.Close, nil

	case config.BackendBadger:
		b, err := cache.OpenBadger(cache.DefaultBadgerConfig(cfg.BadgerDir))
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// redisOptions accepts either a redis:// url or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

func newAgent(cfg config.Config, backend cache.Backend, presenter notify.Presenter, clients notify.Clients) (*agent.Agent, error) {
	origin, err := cfg.OriginURL()
	if err != nil {
		return nil, err
	}

	network := fetch.NewHTTPFetcher(fetch.HTTPConfig{
		Timeout:   cfg.NetworkTimeout,
		UserAgent: cfg.UserAgent,
	})

	acfg := agent.DefaultConfig(origin, backend, network)
	acfg.Namespace = cfg.Namespace
	acfg.Version = cfg.Version
	acfg.Manifest = cfg.ManifestOrDefault(agent.DefaultManifest)
	acfg.ProvisionConcurrency = cfg.ProvisionConcurrency
	acfg.Presenter = presenter
	acfg.Clients = clients

	a, err := agent.New(acfg)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

func newMux(a *agent.Agent, center *notify.Center, origin *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.Transport = a
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, fmt.Sprintf("upstream unavailable: %v", err), http.StatusBadGateway)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(a))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /_agent/push", pushHandler(a))
	mux.HandleFunc("POST /_agent/notifications/{id}/click", clickHandler(a, center))
	mux.Handle("/", proxy)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready once the agent serves requests.
func readyHandler(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if state := a.State(); state != agent.StateServing {
			http.Error(w, "agent "+state.String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func pushHandler(a *agent.Agent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxPushBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		ev := a.NewEvent(r.Context())
		alert, err := a.Push(ev, raw).Await(r.Context())
		if serr := ev.Settle(); err == nil {
			err = serr
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, alert)
	}
}

func clickHandler(a *agent.Agent, center *notify.Center) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alert, ok := center.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "unknown notification", http.StatusNotFound)
			return
		}

		ev := a.NewEvent(r.Context())
		action, err := a.Interact(ev, notify.Interaction{Alert: alert}).Await(r.Context())
		if serr := ev.Settle(); err == nil {
			err = serr
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"action": string(action),
			"url":    alert.Data.OpenURL,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
