//go:build integration

package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/Sternrassler/offline-agent/internal/testutil"
	"github.com/Sternrassler/offline-agent/pkg/agent"
	"github.com/Sternrassler/offline-agent/pkg/cache"
	"github.com/Sternrassler/offline-agent/pkg/fetch"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// startAgent builds, provisions and activates an agent for version.
func startAgent(t *testing.T, origin *testutil.MockOrigin, backend cache.Backend, version string) *agent.Agent {
	t.Helper()

	network := fetch.NewHTTPFetcher(fetch.HTTPConfig{Timeout: 2 * time.Second})
	cfg := agent.DefaultConfig(origin.BaseURL(), backend, network)
	cfg.Version = version

	a, err := agent.New(cfg)
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}

	ctx := context.Background()
	if err := a.Provision(ctx); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if err := a.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return a
}

// drain waits for background tier writes of a.
func drain(t *testing.T, a *agent.Agent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func get(t *testing.T, client *http.Client, url string, header map[string]string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

// TestOfflineFlow runs the agent on Redis tiers: online requests fill the
// tiers, then the origin goes away and every request class degrades.
func TestOfflineFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.ServeFiles(agent.DefaultManifest...)
	origin.ServeFiles("/assets/chart.js")
	origin.SetResponse("/api/patients", testutil.NewJSONResponse(`[{"id":1}]`))

	a := startAgent(t, origin, cache.NewRedisBackend(redisClient, "agent:flow"), "v1")
	client := &http.Client{Transport: a}

	if status, body := get(t, client, origin.URL()+"/api/patients", nil); status != http.StatusOK || body != `[{"id":1}]` {
		t.Fatalf("online api got %d %q", status, body)
	}
	if status, _ := get(t, client, origin.URL()+"/assets/chart.js", nil); status != http.StatusOK {
		t.Fatalf("online asset got %d", status)
	}
	drain(t, a)

	origin.SetOffline(true)

	tests := []struct {
		name       string
		path       string
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{"provisioned asset", "/assets/app.js", nil, http.StatusOK, "content of /assets/app.js"},
		{"runtime asset", "/assets/chart.js", nil, http.StatusOK, "content of /assets/chart.js"},
		{"stale api data", "/api/patients", nil, http.StatusOK, `[{"id":1}]`},
		{"offline api data", "/api/visits", nil, http.StatusServiceUnavailable,
			`{"error":true,"message":"You are currently offline","offline":true}`},
		{"navigation", "/patients/7", map[string]string{"Sec-Fetch-Mode": "navigate"}, http.StatusOK, "content of /offline.html"},
		{"image without fallback", "/images/scan.png", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, client, origin.URL()+tt.path, tt.header)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

// TestVersionUpgrade activates a second version on the same Redis backend
// and expects only its tiers to remain.
func TestVersionUpgrade(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.ServeFiles(agent.DefaultManifest...)
	origin.ServeFiles("/assets/chart.js", "/reports")

	ctx := context.Background()
	backend := cache.NewRedisBackend(redisClient, "agent:upgrade")

	v1 := startAgent(t, origin, backend, "v1")
	client := &http.Client{Transport: v1}
	get(t, client, origin.URL()+"/assets/chart.js", nil)
	get(t, client, origin.URL()+"/reports", nil)
	drain(t, v1)

	names, err := backend.TierNames(ctx)
	if err != nil {
		t.Fatalf("TierNames() error = %v", err)
	}
	sort.Strings(names)
	want := []string{"app-asset-v1", "app-dynamic-v1", "app-static-v1"}
	if len(names) != len(want) {
		t.Fatalf("v1 tiers = %v, want %v", names, want)
	}

	startAgent(t, origin, backend, "v2")

	names, err = backend.TierNames(ctx)
	if err != nil {
		t.Fatalf("TierNames() error = %v", err)
	}
	if len(names) != 1 || names[0] != "app-static-v2" {
		t.Errorf("tiers after upgrade = %v, want [app-static-v2]", names)
	}

	// Other prefixes in the same database are untouched.
	other := cache.NewRedisBackend(redisClient, "agent:other")
	if err := other.CreateTier(ctx, "app-static-v0"); err != nil {
		t.Fatalf("CreateTier() error = %v", err)
	}
	startAgent(t, origin, backend, "v3")
	if ok, _ := other.HasTier(ctx, "app-static-v0"); !ok {
		t.Error("activation deleted a tier outside its prefix")
	}
}

// TestProvisioningFailureKeepsBackendClean checks that a manifest with an
// unreachable resource writes nothing.
func TestProvisioningFailureKeepsBackendClean(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.ServeFiles("/", "/offline.html")

	backend := cache.NewRedisBackend(redisClient, "agent:atomic")
	network := fetch.NewHTTPFetcher(fetch.HTTPConfig{Timeout: 2 * time.Second})
	cfg := agent.DefaultConfig(origin.BaseURL(), backend, network)
	cfg.Manifest = []string{"/", "/offline.html", "/assets/missing.css"}

	a, err := agent.New(cfg)
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}

	ctx := context.Background()
	if err := a.Provision(ctx); err == nil {
		t.Fatal("Provision() should fail for a missing resource")
	}

	for _, p := range []string{"/", "/offline.html"} {
		_, err := a.Cache().Match(ctx, mustKey(t, origin.URL()+p), a.Tiers().Static())
		if !errors.Is(err, cache.ErrCacheMiss) {
			t.Errorf("Match(%s) error = %v, want ErrCacheMiss", p, err)
		}
	}
}

func mustKey(t *testing.T, rawURL string) cache.Key {
	t.Helper()
	req, err := fetch.NewRequest(rawURL, fetch.ModeNoCORS)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	key, err := cache.KeyFor(req)
	if err != nil {
		t.Fatalf("KeyFor() error = %v", err)
	}
	return key
}
